package handlers

import (
	"testing"

	"github.com/vadimpetrov/diacare-bot/internal/database"
	"github.com/vadimpetrov/diacare-bot/internal/diary"
)

func TestDecodeCallback(t *testing.T) {
	tests := []struct {
		data string
		want callbackCommand
	}{
		{"main_menu", cmdMainMenu{}},
		{"dose_carbs", cmdStartDose{flow: diary.FlowDoseCarbs}},
		{"dose_xe", cmdStartDose{flow: diary.FlowDoseXE}},
		{"sugar_only", cmdSugarOnly{}},
		{"entry_confirm", cmdEntryConfirm{}},
		{"entry_cancel", cmdEntryCancel{}},
		{"entry_edit:15", cmdEntryEdit{id: 15}},
		{"entry_delete:15", cmdEntryDelete{id: 15}},
		{"reminder_type:" + database.ReminderFoodCheck, cmdReminderType{reminderType: database.ReminderFoodCheck}},
		{"reminder_toggle:42", cmdReminderToggle{id: 42}},
		{"reminder_delete:7", cmdReminderDelete{id: 7}},
		{"reminder_snooze:3", cmdReminderSnooze{id: 3}},
		{"reminder_dismiss:3", cmdReminderOK{id: 3}},
	}

	for _, tt := range tests {
		got, err := decodeCallback(tt.data)
		if err != nil {
			t.Errorf("decodeCallback(%q) error: %v", tt.data, err)
			continue
		}
		if got != tt.want {
			t.Errorf("decodeCallback(%q) = %#v, want %#v", tt.data, got, tt.want)
		}
	}
}

func TestDecodeCallback_Malformed(t *testing.T) {
	for _, data := range []string{"", "bogus", "reminder_toggle:", "reminder_toggle:abc", "reminder_toggle:-1", "unknown:5"} {
		if _, err := decodeCallback(data); err == nil {
			t.Errorf("decodeCallback(%q) accepted malformed data", data)
		}
	}
}
