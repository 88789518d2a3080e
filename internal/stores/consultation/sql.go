package consultation

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/jkim999/primary-care-consultant/pkg/consultation"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SQLStore logs consultations to MySQL or PostgreSQL through GORM
type SQLStore struct {
	db *gorm.DB
}

// Dialector returns the GORM dialector for a store driver name
func Dialector(driver, dsn string) (gorm.Dialector, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database dsn cannot be empty")
	}

	switch driver {
	case "mysql":
		return mysql.Open(dsn), nil
	case "postgres":
		return postgres.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}
}

// NewSQLStore opens the database and migrates the consultations table
func NewSQLStore(driver, dsn string) (*SQLStore, error) {
	dialector, err := Dialector(driver, dsn)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB from gorm.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return NewSQLStoreFromDB(db)
}

// NewSQLStoreFromDB wraps an existing connection and migrates the consultations table
func NewSQLStoreFromDB(db *gorm.DB) (*SQLStore, error) {
	if err := db.AutoMigrate(&ConsultationModel{}); err != nil {
		return nil, fmt.Errorf("failed to migrate tables: %w", err)
	}
	return &SQLStore{db: db}, nil
}

// LogConsultation inserts one consultation row
func (s *SQLStore) LogConsultation(ctx context.Context, entry *consultation.LogEntry) error {
	if err := validate(entry); err != nil {
		return err
	}

	model, err := toModel(entry)
	if err != nil {
		return consultation.E(consultation.CodePersistence, "SQLStore.LogConsultation", "failed to encode consultation", err)
	}

	if err := s.db.WithContext(ctx).Create(model).Error; err != nil {
		return consultation.E(consultation.CodePersistence, "SQLStore.LogConsultation", "failed to save consultation", err)
	}
	return nil
}

// ListRecent returns the most recent consultations, oldest first
func (s *SQLStore) ListRecent(ctx context.Context, limit int) ([]consultation.Summary, error) {
	query := s.db.WithContext(ctx).
		Model(&ConsultationModel{}).
		Select("id", "timestamp", "chief_complaint", "severity", "handoff_status", "is_emergency").
		Order("timestamp DESC").
		Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var models []ConsultationModel
	if err := query.Find(&models).Error; err != nil {
		return nil, consultation.E(consultation.CodePersistence, "SQLStore.ListRecent", "failed to list consultations", err)
	}

	summaries := make([]consultation.Summary, 0, len(models))
	for i := range models {
		summaries = append(summaries, models[i].summary())
	}
	slices.Reverse(summaries)

	return summaries, nil
}

// Get returns the full row for one consultation
func (s *SQLStore) Get(ctx context.Context, id string) (*ConsultationModel, error) {
	var model ConsultationModel
	result := s.db.WithContext(ctx).First(&model, "id = ?", id)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, consultation.E(consultation.CodeNotFound, "SQLStore.Get", "consultation not found", nil)
		}
		return nil, consultation.E(consultation.CodePersistence, "SQLStore.Get", "failed to get consultation", result.Error)
	}
	return &model, nil
}

// Close closes the database connection
func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB from gorm.DB: %w", err)
	}
	return sqlDB.Close()
}
