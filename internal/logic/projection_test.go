package logic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProject(t *testing.T) {
	tests := []struct {
		name       string
		view       View
		wantDigit  Digit
		wantColor  Color
		wantStatus Status
	}{
		{
			name:       "latched wins over everything",
			view:       View{Jam: JamLatched, Selecting: true, Candidate: 2, Current: 5},
			wantDigit:  DigitError,
			wantColor:  ColorError,
			wantStatus: StatusJam,
		},
		{
			name:       "selecting shows candidate",
			view:       View{Selecting: true, Candidate: 2, Current: 5},
			wantDigit:  2,
			wantColor:  ColorSelecting,
			wantStatus: StatusSelecting,
		},
		{
			name:       "manual calibrating",
			view:       View{Mode: ModeManual, Current: 5},
			wantDigit:  5,
			wantColor:  ColorYellow,
			wantStatus: StatusRegulating,
		},
		{
			name:       "manual regulated",
			view:       View{Mode: ModeManual, Regulated: true, Current: 5},
			wantDigit:  5,
			wantColor:  ColorNormal,
			wantStatus: StatusRunning,
		},
		{
			name:       "automatic is never yellow",
			view:       View{Mode: ModeAutomatic, Current: 3},
			wantDigit:  3,
			wantColor:  ColorNormal,
			wantStatus: StatusRunning,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			digit, color := Project(tt.view)
			assert.Equal(t, tt.wantDigit, digit)
			assert.Equal(t, tt.wantColor, color)
			assert.Equal(t, tt.wantStatus, StatusOf(tt.view))
		})
	}
}

func TestDigitString(t *testing.T) {
	assert.Equal(t, "E", DigitError.String())
	assert.Equal(t, "0", Digit(0).String())
	assert.Equal(t, "7", Digit(7).String())
}
