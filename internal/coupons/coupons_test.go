package coupons

import "testing"

func TestCouponApply(t *testing.T) {
	tests := []struct {
		name   string
		coupon Coupon
		total  int64
		want   int64
	}{
		{"ten percent", Coupon{Kind: KindPercent, Value: 10}, 1000, 900},
		{"percent rounds half up", Coupon{Kind: KindPercent, Value: 33}, 999, 669}, // 329.67 -> 330 off
		{"hundred percent", Coupon{Kind: KindPercent, Value: 100}, 1234, 0},
		{"fixed amount", Coupon{Kind: KindFixed, Value: 300}, 1000, 700},
		{"fixed never below zero", Coupon{Kind: KindFixed, Value: 2000}, 1000, 0},
		{"unknown kind leaves total", Coupon{Kind: "bogus", Value: 50}, 1000, 1000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.coupon.Apply(tt.total); got != tt.want {
				t.Errorf("Apply(%d) = %d, want %d", tt.total, got, tt.want)
			}
		})
	}
}
