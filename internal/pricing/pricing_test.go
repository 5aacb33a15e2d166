package pricing

import (
	"errors"
	"testing"
	"time"

	"github.com/mmeshcher/commentpass-ledger/internal/model"
)

func TestSubscriptionPrice(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		want     model.Amount
		wantErr  bool
	}{
		{name: "one day", duration: Day, want: 200},
		{name: "twenty days", duration: 20 * Day, want: 4000},
		{name: "monthly", duration: MonthlyDuration, want: MonthlyPrice},
		{name: "yearly", duration: YearlyDuration, want: YearlyPrice},
		{name: "one and a half days", duration: 129600 * time.Second, wantErr: true},
		{name: "twenty one days", duration: 21 * Day, wantErr: true},
		{name: "sixty days", duration: 60 * Day, wantErr: true},
		{name: "zero", duration: 0, wantErr: true},
		{name: "negative", duration: -Day, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SubscriptionPrice(tt.duration)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidDuration) {
					t.Fatalf("SubscriptionPrice(%s) error = %v, want ErrInvalidDuration", tt.duration, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("SubscriptionPrice(%s) error: %v", tt.duration, err)
			}
			if got != tt.want {
				t.Fatalf("SubscriptionPrice(%s) = %d, want %d", tt.duration, got, tt.want)
			}
		})
	}
}

func TestDailyPassPrices(t *testing.T) {
	self, err := DailyPassPrice(5)
	if err != nil {
		t.Fatalf("DailyPassPrice error: %v", err)
	}
	if self != 1000 {
		t.Fatalf("DailyPassPrice(5) = %d, want 1000", self)
	}

	gift, err := GiftDailyPassCost(2)
	if err != nil {
		t.Fatalf("GiftDailyPassCost error: %v", err)
	}
	if gift != 300 {
		t.Fatalf("GiftDailyPassCost(2) = %d, want 300", gift)
	}

	for _, count := range []int64{0, -1, MaxPassCount + 1} {
		if _, err := DailyPassPrice(count); !errors.Is(err, ErrInvalidDuration) {
			t.Fatalf("DailyPassPrice(%d) error = %v, want ErrInvalidDuration", count, err)
		}
	}
}

func TestReferralCommission(t *testing.T) {
	if got := ReferralCommission(MonthlyPrice); got != 300 {
		t.Fatalf("ReferralCommission(monthly) = %d, want 300", got)
	}
	if got := ReferralCommission(YearlyPrice); got != 3000 {
		t.Fatalf("ReferralCommission(yearly) = %d, want 3000", got)
	}
	if got := ReferralCommission(DailyPrice); got != 15 {
		t.Fatalf("ReferralCommission(daily) = %d, want 15", got)
	}
}
