package flagx

import (
	"reflect"
	"testing"
)

func TestFilterArgs_SeparateValue(t *testing.T) {
	got := FilterArgs([]string{"-d", "diary.db", "-x", "other"}, []string{"-d"})
	want := []string{"-d", "diary.db"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestFilterArgs_EqualsForm(t *testing.T) {
	got := FilterArgs([]string{"--dsn=diary.db", "--other=1"}, []string{"--dsn"})
	want := []string{"--dsn=diary.db"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestFilterArgs_FlagFollowedByFlag(t *testing.T) {
	got := FilterArgs([]string{"-v", "-d", "diary.db"}, []string{"-v", "-d"})
	want := []string{"-v", "-d", "diary.db"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestFilterArgs_Empty(t *testing.T) {
	got := FilterArgs(nil, []string{"-d"})
	if len(got) != 0 {
		t.Fatalf("expected empty result, got %v", got)
	}
}
