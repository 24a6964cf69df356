package orders

import "testing"

func TestTotal(t *testing.T) {
	tests := []struct {
		name  string
		items []OrderItem
		want  int64
	}{
		{
			name: "two lines",
			items: []OrderItem{
				{ProductID: "productA", SizeID: "sizeS", Quantity: 2, UnitPrice: 100},
				{ProductID: "productB", SizeID: "sizeM", Quantity: 1, UnitPrice: 50},
			},
			want: 250,
		},
		{
			name: "single line",
			items: []OrderItem{
				{Quantity: 3, UnitPrice: 1999},
			},
			want: 5997,
		},
		{
			name: "no items",
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Total(tt.items); got != tt.want {
				t.Errorf("Total() = %d, want %d", got, tt.want)
			}
		})
	}
}
