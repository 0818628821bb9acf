package kyc

import "testing"

func TestCheck(t *testing.T) {
	cases := []struct {
		country      string
		favouriteInt int
		wantErr      bool
	}{
		{"GB", 7, false},
		{"DE", 0, false},
		{"US", 7, true},
		{"USA", 7, true},
		{"GB", 666, true},
	}
	for _, tc := range cases {
		err := Check(tc.country, tc.favouriteInt)
		if (err != nil) != tc.wantErr {
			t.Errorf("Check(%q, %d): got err=%v, want error=%v", tc.country, tc.favouriteInt, err, tc.wantErr)
		}
	}
}
