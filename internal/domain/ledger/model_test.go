package ledger

import "testing"

// TestDecomposePlatformFee_GrossMinusNetEqualsFee covers P9: for every
// platform_fee row, gross - net must equal fee exactly, with no rounding
// leak either direction.
func TestDecomposePlatformFee_GrossMinusNetEqualsFee(t *testing.T) {
	cases := []struct {
		name           string
		grossMinor     int64
		feeBasisPoints int
	}{
		{"default 15% take rate", 10000, 1500},
		{"zero fee", 5000, 0},
		{"odd gross amount, non-exact division", 1001, 1500},
		{"large gross amount", 987654321, 250},
		{"single cent gross", 1, 1500},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			entry := DecomposePlatformFee("escrow1", tc.grossMinor, tc.feeBasisPoints)
			if entry.GrossMinor-entry.NetMinor != entry.PlatformFeeMinor {
				t.Fatalf("gross(%d) - net(%d) != fee(%d)", entry.GrossMinor, entry.NetMinor, entry.PlatformFeeMinor)
			}
			if entry.PlatformFeeMinor < 0 || entry.NetMinor < 0 {
				t.Fatalf("negative fee or net: fee=%d net=%d", entry.PlatformFeeMinor, entry.NetMinor)
			}
			if entry.EventType != RevenuePlatformFee {
				t.Fatalf("expected event type %s, got %s", RevenuePlatformFee, entry.EventType)
			}
		})
	}
}

// TestDecomposePlatformFee_SumsAcrossMultipleEntries covers the aggregate
// form of P9: summed gross minus summed net must equal summed fee across
// an arbitrary set of entries, not just a single one.
func TestDecomposePlatformFee_SumsAcrossMultipleEntries(t *testing.T) {
	entries := []RevenueEntry{
		DecomposePlatformFee("escrow1", 10000, 1500),
		DecomposePlatformFee("escrow2", 2500, 1500),
		DecomposePlatformFee("escrow3", 333, 1500),
	}
	var gross, net, fee int64
	for _, e := range entries {
		gross += e.GrossMinor
		net += e.NetMinor
		fee += e.PlatformFeeMinor
	}
	if gross-net != fee {
		t.Fatalf("sum(gross) - sum(net) != sum(fee): %d - %d != %d", gross, net, fee)
	}
}
