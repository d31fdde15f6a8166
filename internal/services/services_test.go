package services

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"receiptmaker/internal"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const sampleSections = `[
	{"type":"header","id":"header-1","businessDetails":"Corner Cafe\n1 Main St"},
	{"type":"items_list","id":"items_list-1","items":[{"quantity":2,"item":"Latte","price":4.5}],"totalLines":[{"title":"Subtotal","value":9}],"total":{"title":"TOTAL","price":9}},
	{"type":"custom_message","id":"custom_message-1","message":"Thank you!"},
	{"type":"barcode","id":"barcode-1","value":"123456","size":1}
]`

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := internal.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func templateInput(name, slug string) TemplateInput {
	return TemplateInput{Name: name, Slug: slug, Sections: json.RawMessage(sampleSections)}
}
