package journal

import (
	"encoding/json"

	"github.com/mark3labs/stepwise/internal/logger"
	"github.com/mark3labs/stepwise/internal/wizard"
)

// Progress is a run's state reconstructed from its records.
type Progress struct {
	Instance         string          `json:"instance"`
	CurrentStepID    string          `json:"current_step_id"`
	StepData         map[string]any  `json:"step_data"`
	ValidationStatus map[string]bool `json:"validation_status"`
	LastError        string          `json:"last_error,omitempty"`
	Complete         bool            `json:"complete"`
	Events           int             `json:"events"`
}

// Replay reduces records, oldest first, into a Progress.
func Replay(records []Record) *Progress {
	p := &Progress{
		StepData:         make(map[string]any),
		ValidationStatus: make(map[string]bool),
	}
	for _, rec := range records {
		p.Apply(rec)
	}
	return p
}

// Apply folds one record into p.
func (p *Progress) Apply(rec Record) {
	p.Events++
	if p.Instance == "" {
		p.Instance = rec.Instance
	}

	switch rec.Kind {
	case wizard.KindStepDataUpdate:
		var data any
		if err := decode(rec, &data); err == nil {
			p.StepData[rec.StepID] = data
		}
	case wizard.KindValidationStatus:
		if rec.Valid != nil {
			p.ValidationStatus[rec.StepID] = *rec.Valid
		}
	case wizard.KindNavigate:
		p.CurrentStepID = rec.To
		p.LastError = ""
	case wizard.KindError:
		p.LastError = rec.Message
	case wizard.KindComplete:
		p.Complete = true
		var data map[string]any
		if err := decode(rec, &data); err == nil && data != nil {
			p.StepData = data
		}
	}
}

func decode(rec Record, v any) error {
	if len(rec.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(rec.Data, v); err != nil {
		logger.Warn("Skipping undecodable %s data (seq=%d): %v", rec.Kind, rec.Seq, err)
		return err
	}
	return nil
}

// Snapshot converts p into a state a store can Restore. The error state is
// not carried over.
func (p *Progress) Snapshot() wizard.Snapshot {
	return wizard.Snapshot{
		CurrentStepID:    p.CurrentStepID,
		StepData:         p.StepData,
		ValidationStatus: p.ValidationStatus,
	}
}
