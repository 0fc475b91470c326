package ledger

import "testing"

func TestToWords(t *testing.T) {
	tests := []struct {
		amount string
		want   string
	}{
		{"0", "Zero"},
		{"7", "Seven"},
		{"15", "Fifteen"},
		{"40", "Forty"},
		{"99", "Ninety Nine"},
		{"100", "One Hundred"},
		{"101", "One Hundred One"},
		{"1500", "One Thousand Five Hundred"},
		{"20000", "Twenty Thousand"},
		{"100000", "One Lakh"},
		{"125000", "One Lakh Twenty Five Thousand"},
		{"123456", "One Lakh Twenty Three Thousand Four Hundred Fifty Six"},
		{"9999999", "Ninety Nine Lakh Ninety Nine Thousand Nine Hundred Ninety Nine"},
		{"10000000", "One Crore"},
		{"10000001", "One Crore One"},
		{"1000000000", "One Hundred Crore"},
		{"1234567890", "One Hundred Twenty Three Crore Forty Five Lakh Sixty Seven Thousand Eight Hundred Ninety"},
		{"10000000000", "One Thousand Crore"},
		{"1500.50", "One Thousand Five Hundred and Fifty Paise"},
		{"0.75", "Seventy Five Paise"},
		{"99.999", "One Hundred"},
		{"2500.00", "Two Thousand Five Hundred"},
		{"-250", "Minus Two Hundred Fifty"},
	}
	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			if got := ToWords(dec(tt.amount)); got != tt.want {
				t.Fatalf("ToWords(%s): expected %q; got %q", tt.amount, tt.want, got)
			}
		})
	}
}
