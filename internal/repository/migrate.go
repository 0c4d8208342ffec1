package repository

import (
	"context"
	"fmt"

	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

const (
	tableOrders   = "orders"
	tableScanJobs = "scan_jobs"
)

// Timestamps are stored as fixed-width UTC text (see timeLayout) so they sort
// the same way on every dialect.
var (
	// OrdersColumns holds the columns for the "orders" table.
	OrdersColumns = []*schema.Column{
		{Name: "id", Type: field.TypeUUID},
		{Name: "order_number", Type: field.TypeString},
		{Name: "numeric_tail", Type: field.TypeInt64, Default: 0},
		{Name: "date_time", Type: field.TypeString},
		{Name: "price", Type: field.TypeFloat64},
		{Name: "restaurant_name", Type: field.TypeString, Default: ""},
		{Name: "payment_method", Type: field.TypeString, Default: ""},
		{Name: "items", Type: field.TypeString, Default: "[]", SchemaType: map[string]string{dialect.Postgres: "text"}},
		{Name: "status", Type: field.TypeString},
		{Name: "receipt_image", Type: field.TypeBytes, Nullable: true},
		{Name: "proof_image", Type: field.TypeBytes, Nullable: true},
		{Name: "created_at", Type: field.TypeString},
		{Name: "updated_at", Type: field.TypeString},
	}
	// OrdersTable holds the schema information for the "orders" table.
	OrdersTable = &schema.Table{
		Name:       tableOrders,
		Columns:    OrdersColumns,
		PrimaryKey: []*schema.Column{OrdersColumns[0]},
		Indexes: []*schema.Index{
			{
				Name:    "order_numeric_tail_created_at",
				Unique:  false,
				Columns: []*schema.Column{OrdersColumns[2], OrdersColumns[11]},
			},
			{
				Name:    "order_status",
				Unique:  false,
				Columns: []*schema.Column{OrdersColumns[8]},
			},
		},
	}
	// ScanJobsColumns holds the columns for the "scan_jobs" table.
	ScanJobsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeUUID},
		{Name: "source_path", Type: field.TypeString},
		{Name: "status", Type: field.TypeString},
		{Name: "backend", Type: field.TypeString, Default: ""},
		{Name: "ocr_text", Type: field.TypeString, Nullable: true, SchemaType: map[string]string{dialect.Postgres: "text"}},
		{Name: "error_kind", Type: field.TypeString, Nullable: true},
		{Name: "error_message", Type: field.TypeString, Nullable: true, SchemaType: map[string]string{dialect.Postgres: "text"}},
		{Name: "started_at", Type: field.TypeString},
		{Name: "finished_at", Type: field.TypeString, Nullable: true},
		{Name: "order_id", Type: field.TypeUUID, Nullable: true},
	}
	// ScanJobsTable holds the schema information for the "scan_jobs" table.
	ScanJobsTable = &schema.Table{
		Name:       tableScanJobs,
		Columns:    ScanJobsColumns,
		PrimaryKey: []*schema.Column{ScanJobsColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "scan_jobs_orders_jobs",
				Columns:    []*schema.Column{ScanJobsColumns[9]},
				RefColumns: []*schema.Column{OrdersColumns[0]},
				OnDelete:   schema.SetNull,
			},
		},
		Indexes: []*schema.Index{
			{
				Name:    "scanjob_started_at",
				Unique:  false,
				Columns: []*schema.Column{ScanJobsColumns[7]},
			},
			{
				Name:    "scanjob_order_id",
				Unique:  false,
				Columns: []*schema.Column{ScanJobsColumns[9]},
			},
		},
	}
	// Tables holds all the tables in the schema.
	Tables = []*schema.Table{
		OrdersTable,
		ScanJobsTable,
	}
)

func init() {
	ScanJobsTable.ForeignKeys[0].RefTable = OrdersTable
}

// Migrate brings the store up to Tables with ent's migration engine. Missing
// tables, columns and indexes are added; nothing is dropped.
func (db *DB) Migrate(ctx context.Context, opts ...schema.MigrateOption) error {
	m, err := schema.NewMigrate(db.Driver, opts...)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if err := m.Create(ctx, Tables...); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
