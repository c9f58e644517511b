package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/huangang/meridian/internal/config"
	"github.com/huangang/meridian/internal/models"
	"github.com/huangang/meridian/pkg/response"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := models.Open(&config.DatabaseConfig{Driver: "sqlite", DSN: dsn}, gormlogger.Silent)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := models.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func createUser(t *testing.T, db *gorm.DB, name, email string) *models.User {
	t.Helper()
	user := &models.User{
		IdentityProvider: "aad",
		ExternalID:       "ext-" + strings.ToLower(strings.ReplaceAll(name, " ", "-")),
		Email:            email,
		DisplayName:      name,
		IsActive:         true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("create user %s: %v", name, err)
	}
	return user
}

// fixture is a meridian with one user per role plus an outsider.
type fixture struct {
	db       *gorm.DB
	owner    *models.User
	member   *models.User
	viewer   *models.User
	outsider *models.User
	meridian *models.Meridian
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
	f := &fixture{
		db:       db,
		owner:    createUser(t, db, "Olive Owner", "olive@example.com"),
		member:   createUser(t, db, "Max Member", "max@example.com"),
		viewer:   createUser(t, db, "Vera Viewer", "vera@example.com"),
		outsider: createUser(t, db, "Otto Outsider", "otto@example.com"),
	}
	f.meridian = f.createMeridian(t, "Alpha", "alpha")
	f.addMember(t, f.meridian.ID, f.member.ID, "member")
	f.addMember(t, f.meridian.ID, f.viewer.ID, "viewer")
	return f
}

func (f *fixture) createMeridian(t *testing.T, name, slug string) *models.Meridian {
	t.Helper()
	m, err := NewMeridianService(f.db).Create(&CreateMeridianRequest{Name: name, Slug: slug}, f.owner.ID)
	if err != nil {
		t.Fatalf("create meridian %s: %v", slug, err)
	}
	return m
}

func (f *fixture) addMember(t *testing.T, meridianID, userID uint, role string) {
	t.Helper()
	if _, err := NewMemberService(f.db).AddMember(meridianID, &AddMemberRequest{UserID: userID, Role: role}, f.owner.ID); err != nil {
		t.Fatalf("add member %d as %s: %v", userID, role, err)
	}
}

func (f *fixture) createItem(t *testing.T, meridianID uint, parentID *uint, itemType, title string) *models.WorkItem {
	t.Helper()
	item, err := NewWorkItemService(f.db).CreateItem(&CreateItemRequest{
		MeridianID: meridianID,
		ParentID:   parentID,
		Type:       itemType,
		Title:      title,
	}, f.owner.ID)
	if err != nil {
		t.Fatalf("create %s %q: %v", itemType, title, err)
	}
	return item
}

func (f *fixture) reload(t *testing.T, id uint) *models.WorkItem {
	t.Helper()
	var item models.WorkItem
	if err := f.db.First(&item, id).Error; err != nil {
		t.Fatalf("reload item %d: %v", id, err)
	}
	return &item
}

func rawJSON(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal %v: %v", v, err)
	}
	return b
}

func expectStatus(t *testing.T, err error, status int) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected HTTP %d error, got nil", status)
	}
	var appErr *response.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *response.AppError with HTTP %d, got %T: %v", status, err, err)
	}
	if appErr.HTTPStatus != status {
		t.Fatalf("expected HTTP %d, got %d (%s)", status, appErr.HTTPStatus, appErr.Message)
	}
}

func expectForbidden(t *testing.T, err error) {
	t.Helper()
	expectStatus(t, err, http.StatusForbidden)
}

func ptrUint(v uint) *uint { return &v }

func ptrString(s string) *string { return &s }
