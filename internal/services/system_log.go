package services

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/huangang/meridian/internal/models"
	"github.com/huangang/meridian/pkg/logger"
	"gorm.io/gorm"
)

var auditDB *gorm.DB

// InitSystemLogger sets the store audit rows go to. A nil handle turns
// auditing off.
func InitSystemLogger(db *gorm.DB) {
	auditDB = db
}

// AuditEntry is one completed mutating request.
type AuditEntry struct {
	Module    string
	Action    string
	Message   string
	Status    int
	UserID    *uint
	IP        string
	UserAgent string
	Extra     map[string]interface{}
}

func auditLevel(status int) string {
	switch {
	case status >= http.StatusInternalServerError:
		return "error"
	case status >= http.StatusBadRequest:
		return "warning"
	default:
		return "info"
	}
}

// RecordAudit stores the entry in system_logs. Failures are logged, never
// returned: the request has already been answered.
func RecordAudit(e AuditEntry) {
	if auditDB == nil {
		return
	}

	var extra string
	if len(e.Extra) > 0 {
		if b, err := json.Marshal(e.Extra); err == nil {
			extra = string(b)
		}
	}

	row := &models.SystemLog{
		Level:     auditLevel(e.Status),
		Module:    e.Module,
		Action:    e.Action,
		Message:   e.Message,
		UserID:    e.UserID,
		IP:        e.IP,
		UserAgent: e.UserAgent,
		Extra:     extra,
		CreatedAt: time.Now(),
	}
	if err := auditDB.Create(row).Error; err != nil {
		logger.Warn().Err(err).Str("module", e.Module).Str("action", e.Action).Msg("failed to write audit row")
	}
}

type SystemLogService struct {
	db *gorm.DB
}

func NewSystemLogService(db *gorm.DB) *SystemLogService {
	return &SystemLogService{db: db}
}

// PurgeOlderThan drops audit rows past the retention window. Zero keeps
// everything.
func (s *SystemLogService) PurgeOlderThan(retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	res := s.db.Where("created_at < ?", cutoff).Delete(&models.SystemLog{})
	return res.RowsAffected, res.Error
}
