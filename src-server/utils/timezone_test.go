package utils_test

import (
	"caltalk/src-server/utils"
	"testing"
	"time"
)

func TestTimezoneRoundTrip(t *testing.T) {
	for _, zone := range []string{"UTC", "America/New_York", "Asia/Kolkata", "Australia/Sydney"} {
		tz, err := utils.NewTimezone(zone)
		if err != nil {
			t.Fatal(err)
		}
		instant := time.Date(2024, 3, 10, 17, 0, 0, 0, time.UTC)
		back := tz.ToUTC(tz.ToUserZone(instant))
		if !back.Equal(instant) {
			t.Error("round trip mismatch", zone, instant, back)
		}
		// projecting twice should not move the instant
		if !tz.ToUserZone(tz.ToUserZone(instant)).Equal(instant) {
			t.Error("ToUserZone is not idempotent", zone)
		}
	}
}

func TestTimezoneSetInvalidKeepsPrevious(t *testing.T) {
	tz, err := utils.NewTimezone("Europe/London")
	if err != nil {
		t.Fatal(err)
	}
	if err := tz.Set("Not/AZone"); err == nil {
		t.Error("expected error for unknown timezone")
	}
	if tz.Name() != "Europe/London" {
		t.Error("previous timezone should be retained, got", tz.Name())
	}
}

func TestTimezoneDefaultIsUTC(t *testing.T) {
	tz, err := utils.NewTimezone("")
	if err != nil {
		t.Fatal(err)
	}
	if tz.Name() != "UTC" {
		t.Error("expected UTC default, got", tz.Name())
	}
}

func TestFormatForStorage(t *testing.T) {
	tz, err := utils.NewTimezone("America/New_York")
	if err != nil {
		t.Fatal(err)
	}
	// 2024-03-10 22:00 EST == 2024-03-11 03:00 UTC (offset -5, before DST switch)
	local := time.Date(2024, 3, 9, 22, 0, 0, 0, tz.Location())
	if got := tz.FormatForStorage(local); got != "2024-03-10 03:00:00" {
		t.Error("unexpected storage string:", got)
	}
}

func TestParseFromStorageBothFormats(t *testing.T) {
	tz, err := utils.NewTimezone("Asia/Kolkata")
	if err != nil {
		t.Fatal(err)
	}

	fromStorage, err := tz.ParseFromStorage("2024-03-11 03:00:00")
	if err != nil {
		t.Fatal(err)
	}
	if fromStorage.Location() != tz.Location() {
		t.Error("parsed instant should be in the user zone")
	}
	if !fromStorage.Equal(time.Date(2024, 3, 11, 3, 0, 0, 0, time.UTC)) {
		t.Error("storage string should be read as UTC, got", fromStorage)
	}

	// legacy rows carry an ISO-8601 offset
	fromISO, err := tz.ParseFromStorage("2024-03-11T03:00:00+00:00")
	if err != nil {
		t.Fatal(err)
	}
	if !fromISO.Equal(fromStorage) {
		t.Error("both formats should parse to the same instant")
	}

	if _, err := tz.ParseFromStorage("not a timestamp"); err == nil {
		t.Error("expected error for garbage input")
	}
}

func TestParseWall(t *testing.T) {
	tz, err := utils.NewTimezone("Asia/Kolkata")
	if err != nil {
		t.Fatal(err)
	}
	wall, err := tz.ParseWall("2024-03-11 12:00")
	if err != nil {
		t.Fatal(err)
	}
	// noon in Kolkata is 06:30 UTC
	if got := tz.FormatForStorage(wall); got != "2024-03-11 06:30:00" {
		t.Error("unexpected UTC projection:", got)
	}
}

func TestOffsetModifier(t *testing.T) {
	utc, err := utils.NewTimezone("UTC")
	if err != nil {
		t.Fatal(err)
	}
	if got := utc.OffsetModifier(); got != "+0 hours" {
		t.Error("unexpected UTC modifier:", got)
	}

	// Kolkata has a fixed +05:30 offset, no DST
	kolkata, err := utils.NewTimezone("Asia/Kolkata")
	if err != nil {
		t.Fatal(err)
	}
	if got := kolkata.OffsetModifier(); got != "+5 hours, +30 minutes" {
		t.Error("unexpected Kolkata modifier:", got)
	}
}
