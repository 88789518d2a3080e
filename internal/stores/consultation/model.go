package consultation

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jkim999/primary-care-consultant/pkg/consultation"
	"gorm.io/datatypes"
)

// ConsultationModel is the database row for one logged consultation
type ConsultationModel struct {
	ID        string    `json:"id" gorm:"column:id;type:char(36);primaryKey"`
	CreatedAt time.Time `json:"created_at" gorm:"column:created_at"`

	Timestamp      time.Time `json:"timestamp" gorm:"column:timestamp;index"`
	ChiefComplaint string    `json:"chief_complaint" gorm:"column:chief_complaint;size:255"`
	Severity       int       `json:"severity" gorm:"column:severity"`
	HandoffStatus  string    `json:"handoff_status" gorm:"column:handoff_status;size:20;index"`
	IsEmergency    bool      `json:"is_emergency" gorm:"column:is_emergency;index"`

	PatientData         datatypes.JSON `json:"patient_data" gorm:"column:patient_data"`
	ConversationHistory datatypes.JSON `json:"conversation_history" gorm:"column:conversation_history"`
	FinalResponse       string         `json:"final_response" gorm:"column:final_response;type:text"`
}

// TableName sets the table name for GORM
func (ConsultationModel) TableName() string {
	return "consultations"
}

// toModel converts a log entry into its row
func toModel(entry *consultation.LogEntry) (*ConsultationModel, error) {
	patientData, err := json.Marshal(entry.Record)
	if err != nil {
		return nil, fmt.Errorf("failed to encode patient data: %w", err)
	}

	conversation, err := json.Marshal(consultation.RenderLines(entry.Transcript))
	if err != nil {
		return nil, fmt.Errorf("failed to encode conversation: %w", err)
	}

	summary := entry.Summary()
	return &ConsultationModel{
		ID:                  entry.ID,
		Timestamp:           entry.Timestamp.UTC(),
		ChiefComplaint:      consultation.Excerpt(summary.ChiefComplaint, 255),
		Severity:            summary.Severity,
		HandoffStatus:       string(summary.Status),
		IsEmergency:         entry.IsEmergency,
		PatientData:         datatypes.JSON(patientData),
		ConversationHistory: datatypes.JSON(conversation),
		FinalResponse:       entry.FinalText,
	}, nil
}

// summary converts a row into its history view
func (m *ConsultationModel) summary() consultation.Summary {
	return consultation.Summary{
		ID:             m.ID,
		Timestamp:      m.Timestamp,
		ChiefComplaint: m.ChiefComplaint,
		Severity:       m.Severity,
		Status:         consultation.HandoffStatus(m.HandoffStatus),
		IsEmergency:    m.IsEmergency,
	}
}

// validate checks the fields every store requires
func validate(entry *consultation.LogEntry) error {
	if entry == nil {
		return consultation.E(consultation.CodeInvalidArgument, "store.LogConsultation", "entry is required", nil)
	}
	if entry.ID == "" {
		return consultation.E(consultation.CodeInvalidArgument, "store.LogConsultation", "entry id cannot be empty", nil)
	}
	return nil
}

// recent trims summaries (oldest first) down to the last limit
func recent(summaries []consultation.Summary, limit int) []consultation.Summary {
	if limit > 0 && len(summaries) > limit {
		summaries = summaries[len(summaries)-limit:]
	}
	return summaries
}
