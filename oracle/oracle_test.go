// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package oracle

import (
	"testing"

	"github.com/luxfi/icedex/asset"
)

func TestPriceIsQueryableInEitherDirection(t *testing.T) {
	src := NewInMemory()
	src.SetPrice(100, 200, PeriodShort, asset.RatioFromUint64(3, 2))

	forward, err := src.Price(100, 200, PeriodShort)
	if err != nil {
		t.Fatalf("price(100, 200): %v", err)
	}
	if forward.Cmp(asset.RatioFromUint64(3, 2)) != 0 {
		t.Fatalf("forward price = %v, want 3/2", forward)
	}

	reverse, err := src.Price(200, 100, PeriodShort)
	if err != nil {
		t.Fatalf("price(200, 100): %v", err)
	}
	if reverse.Cmp(asset.RatioFromUint64(2, 3)) != 0 {
		t.Fatalf("reverse price = %v, want 2/3", reverse)
	}
}

func TestPriceMissingReturnsErrNoPrice(t *testing.T) {
	src := NewInMemory()
	if _, err := src.Price(100, 200, PeriodShort); err != ErrNoPrice {
		t.Fatalf("got %v, want ErrNoPrice", err)
	}
}

func TestPriceIsPerPeriod(t *testing.T) {
	src := NewInMemory()
	src.SetPrice(100, 200, PeriodShort, asset.RatioFromUint64(1, 1))
	if _, err := src.Price(100, 200, PeriodLong); err != ErrNoPrice {
		t.Fatalf("got %v, want ErrNoPrice for an unset period", err)
	}
}
