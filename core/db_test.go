package core

import (
	"reflect"
	"testing"
)

func TestParseOrdering(t *testing.T) {
	allowed := []string{"title", "created_at"}

	tests := []struct {
		name string
		s    string
		want []DBOrdering
	}{
		{name: "empty", s: ""},
		{name: "unknown field", s: "lol"},
		{name: "ascending", s: "title", want: []DBOrdering{{Field: "title", Ascending: true}}},
		{name: "descending", s: "-created_at", want: []DBOrdering{{Field: "created_at"}}},
		{
			name: "many, skipping unknown and blank", s: " -title, ,lol,created_at",
			want: []DBOrdering{{Field: "title"}, {Field: "created_at", Ascending: true}},
		},
		{name: "lone dash", s: "-"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseOrdering(tt.s, allowed...); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseOrdering() = %v; want %v", got, tt.want)
			}
		})
	}
}

func TestDBOrdering_String(t *testing.T) {
	if got := (DBOrdering{Field: "title", Ascending: true}).String(); got != "title ASC" {
		t.Errorf("String() = %s; want title ASC", got)
	}
	if got := (DBOrdering{Field: "created_at"}).String(); got != "created_at DESC" {
		t.Errorf("String() = %s; want created_at DESC", got)
	}
}
