package repositories

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", t.Name(), time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err, "open sqlite")
	return db
}

func mustExec(t *testing.T, db *gorm.DB, q string, args ...interface{}) {
	t.Helper()
	require.NoError(t, db.Exec(q, args...).Error, "exec failed: query=%s", q)
}

func createCitizenTable(t *testing.T, db *gorm.DB) {
	mustExec(t, db, `CREATE TABLE citizens (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'PENDING_PAYMENT',
		registration_status TEXT NOT NULL DEFAULT 'REGISTER_START',
		biometric_ref_id TEXT,
		payment_customer_id TEXT,
		payment_subscription_id TEXT,
		payment_invoice_id TEXT,
		payment_intent_id TEXT,
		current_period_end DATETIME,
		avatar_style TEXT,
		gender TEXT,
		temp_face_image_url TEXT,
		avatar_url TEXT,
		document_url TEXT,
		created_at DATETIME,
		updated_at DATETIME,
		deleted_at DATETIME,
		banned_at DATETIME
	);`)
}
