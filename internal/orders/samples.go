package orders

import (
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/canteen-orders/constants"
	"github.com/joseph-ayodele/canteen-orders/internal/entity"
)

type sample struct {
	price      float64
	dishes     []string
	status     constants.VerificationStatus
	restaurant string
}

var samples = []sample{
	{45000, []string{"Daging Lada Hitam", "Nasi Putih 1 Porsi", "Es Teh Manis"}, constants.StatusVerified, "Warung Nusantara"},
	{38000, []string{"Ayam Geprek", "Nasi Putih"}, constants.StatusPending, "Ayam Geprek Maknyus"},
	{52000, []string{"Sate Ayam", "Lontong", "Teh Tawar"}, constants.StatusMismatch, "Sate Pak Gino"},
	{60000, []string{"Bakso Urat", "Es Campur"}, constants.StatusVerified, "Bakso Malang Jaya"},
	{29000, []string{"Nasi Goreng", "Kerupuk"}, constants.StatusPending, "Nasi Goreng Bang Jo"},
	{47000, []string{"Mie Ayam", "Es Jeruk"}, constants.StatusMismatch, "Mie Ayam Tumini"},
	{88000, []string{"Ikan Bakar", "Nasi Uduk", "Lalapan", "Sambal"}, constants.StatusVerified, "Pondok Ikan Bakar"},
	{32000, []string{"Lontong Sayur", "Teh Manis"}, constants.StatusPending, "Lontong Sayur Hj. Siti"},
	{56000, []string{"Ayam Bakar", "Sayur Asem", "Nasi Putih"}, constants.StatusMismatch, "Warung Betawi Asli"},
	{73000, []string{"Sop Buntut", "Nasi", "Es Teh"}, constants.StatusVerified, "Restoran Nusantara"},
}

// SampleOrders returns ten fixture orders POS-080425-1 .. POS-080425-10 for
// previews and tests, ten minutes apart counting back from now.
func SampleOrders(now time.Time) []*entity.Order {
	out := make([]*entity.Order, 0, len(samples))
	for i, s := range samples {
		n := i + 1
		dt := now.Add(-time.Hour - time.Duration(i)*10*time.Minute)
		items := make([]entity.LineItem, 0, len(s.dishes))
		for _, d := range s.dishes {
			items = append(items, entity.LineItem{Name: d})
		}
		out = append(out, &entity.Order{
			ID:             uuid.New(),
			OrderNumber:    "POS-080425-" + strconv.Itoa(n),
			NumericTail:    n,
			DateTime:       dt,
			Price:          s.price,
			RestaurantName: s.restaurant,
			Items:          items,
			Status:         s.status,
			CreatedAt:      dt,
			UpdatedAt:      dt,
		})
	}
	return out
}
