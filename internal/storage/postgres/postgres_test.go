package postgres

import (
	"testing"
	"time"

	"github.com/OCAP2/physbridge/internal/model"
	"github.com/OCAP2/physbridge/pkg/core"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestInit_ConnectFailure(t *testing.T) {
	b := New("host=127.0.0.1 port=1 user=x password=x dbname=x sslmode=disable connect_timeout=1", nil)
	err := b.Init()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres")
	assert.NoError(t, b.Close())
}

func TestInitClose_WithInjectedDB(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	b := NewWithDB(db, nil)
	require.NoError(t, b.Init())

	s := &core.Session{UUID: "pg", StartTime: time.Now()}
	require.NoError(t, b.StartSession(s))
	require.NoError(t, b.RecordCollision(&core.Collision{BodyA: 1, BodyB: 2, Normal: core.Vec3{0, 1, 0}}))
	require.NoError(t, b.EndSession())
	require.NoError(t, b.Close())

	var collisions []model.Collision
	require.NoError(t, db.Find(&collisions, "session_id = ?", s.ID).Error)
	require.Len(t, collisions, 1)
	assert.Equal(t, 1.0, collisions[0].Normal.Y)
}
