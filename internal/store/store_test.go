package store

import (
	"math"
	"testing"

	"github.com/google/uuid"

	"github.com/Meridian-Analytics/Beacon/internal/scoring"
)

func TestRunStatusValues(t *testing.T) {
	statuses := []RunStatus{RunStatusRunning, RunStatusCompleted, RunStatusFailed}
	expected := []string{"running", "completed", "failed"}
	for i, s := range statuses {
		if string(s) != expected[i] {
			t.Errorf("expected %s, got %s", expected[i], s)
		}
	}
}

func TestAlertFilterDefaults(t *testing.T) {
	f := AlertFilter{}
	if f.Limit != 0 {
		t.Errorf("expected 0 default limit, got %d", f.Limit)
	}
	if f.CompanyID != nil || f.Acknowledged != nil {
		t.Error("expected nil pointer filters")
	}
}

// A persisted breakdown must reload with identical contributions, down to
// the effective weights and audit flags.
func TestChannelBreakdownRoundTrip(t *testing.T) {
	channels := []scoring.ChannelResult{
		{
			Channel:   scoring.ChannelTransaction,
			Score:     67.5,
			Raw:       67.5,
			Weight:    0.30,
			Effective: 0.375,
			Weighted:  25.3125,
			Available: true,
		},
		{
			Channel:   scoring.ChannelNews,
			Available: false,
			Reason:    "no articles in window",
		},
		{
			Channel:   scoring.ChannelSupplyChain,
			Score:     0,
			Raw:       -14.2,
			Weight:    0.15,
			Effective: 0.1875,
			Available: true,
			Clamped:   true,
			Warnings:  []string{"propagation hit iteration cap; best estimate used"},
		},
	}

	data, err := encodeChannels(channels)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	got, err := decodeChannels(data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(got) != len(channels) {
		t.Fatalf("got %d channels, want %d", len(got), len(channels))
	}
	for i, want := range channels {
		c := got[i]
		if c.Channel != want.Channel || c.Available != want.Available || c.Clamped != want.Clamped {
			t.Errorf("channel %d flags differ: got %+v", i, c)
		}
		if math.Abs(c.Score-want.Score) > 0 || math.Abs(c.Effective-want.Effective) > 0 || math.Abs(c.Weighted-want.Weighted) > 0 {
			t.Errorf("channel %d values differ: got %+v, want %+v", i, c, want)
		}
		if c.Reason != want.Reason || len(c.Warnings) != len(want.Warnings) {
			t.Errorf("channel %d audit trail differs: got %+v", i, c)
		}
	}
}

func TestDecodeChannelsEmpty(t *testing.T) {
	got, err := decodeChannels(nil)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for empty column, got %v", got)
	}
}

func TestSortByCompositeRiskiestFirst(t *testing.T) {
	records := []*ScoreRecord{
		{CompanyID: uuid.New(), Composite: 82},
		{CompanyID: uuid.New(), Composite: 31},
		{CompanyID: uuid.New(), Composite: 54.5},
	}
	sortByComposite(records)
	for i := 1; i < len(records); i++ {
		if records[i-1].Composite > records[i].Composite {
			t.Fatalf("records not ascending by composite: %f before %f", records[i-1].Composite, records[i].Composite)
		}
	}
}

func TestSortByCompositeBreaksTiesByCompanyID(t *testing.T) {
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	records := []*ScoreRecord{
		{CompanyID: ids[2], Composite: 54.5},
		{CompanyID: ids[0], Composite: 54.5},
		{CompanyID: ids[1], Composite: 54.5},
	}
	sortByComposite(records)
	for i := 1; i < len(records); i++ {
		if records[i-1].CompanyID.String() > records[i].CompanyID.String() {
			t.Fatalf("tied composites not ordered by company ID: %s before %s",
				records[i-1].CompanyID, records[i].CompanyID)
		}
	}
}
