// Package consultation persists completed consultations and reads their history back
package consultation

import (
	"fmt"

	"github.com/jkim999/primary-care-consultant/internal/settings"
	"github.com/jkim999/primary-care-consultant/pkg/consultation"
	"github.com/sirupsen/logrus"
)

// Open builds the store selected by the settings' store driver
func Open(cfg settings.Store, log logrus.FieldLogger) (consultation.Store, error) {
	switch cfg.Driver {
	case settings.StoreFile, "":
		return NewFileStore(cfg.LogFile, log)
	case settings.StoreMemory:
		return NewInMemoryStore(), nil
	case settings.StoreMySQL:
		return NewSQLStore("mysql", cfg.MySQLDSN())
	case settings.StorePostgres:
		return NewSQLStore("postgres", cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
