package data

import (
	"context"

	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

const (
	clipsTableName = "clips"

	columnID        = "id"
	columnShortCode = "shortcode"
	columnContent   = "content"
	columnTitle     = "title"
	columnPosted    = "posted"
	columnExpires   = "expires"
	columnPassword  = "password"
	columnHits      = "hits"
)

// clipColumnNames is the column order used by every clip SELECT.
var clipColumnNames = []string{
	columnID,
	columnShortCode,
	columnContent,
	columnTitle,
	columnPosted,
	columnExpires,
	columnPassword,
	columnHits,
}

var (
	// ClipsColumns holds the columns for the "clips" table.
	ClipsColumns = []*schema.Column{
		{Name: columnID, Type: field.TypeString, Size: 36},
		{Name: columnShortCode, Type: field.TypeString, Unique: true, Size: 20},
		{Name: columnContent, Type: field.TypeString, Size: 2147483647},
		{Name: columnTitle, Type: field.TypeString, Default: ""},
		{Name: columnPosted, Type: field.TypeTime},
		{Name: columnExpires, Type: field.TypeTime, Nullable: true},
		{Name: columnPassword, Type: field.TypeString, Default: ""},
		{Name: columnHits, Type: field.TypeUint64, Default: 0},
	}
	// ClipsTable holds the schema information for the "clips" table.
	ClipsTable = &schema.Table{
		Name:       clipsTableName,
		Columns:    ClipsColumns,
		PrimaryKey: []*schema.Column{ClipsColumns[0]},
		Indexes: []*schema.Index{
			{
				Name:    "clip_expires",
				Unique:  false,
				Columns: []*schema.Column{ClipsColumns[5]},
			},
		},
	}
	// Tables holds all the tables in the schema.
	Tables = []*schema.Table{
		ClipsTable,
	}
)

// Migrate creates or updates the tables on drv.
func Migrate(ctx context.Context, drv dialect.Driver) error {
	m, err := schema.NewMigrate(drv)
	if err != nil {
		return err
	}
	return m.Create(ctx, Tables...)
}
