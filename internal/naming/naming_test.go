package naming

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBaseName(t *testing.T) {
	tests := []struct {
		ref  string
		want string
	}{
		{ref: "/models/chair.obj", want: "chair"},
		{ref: "models\\Office Chair.OBJ", want: "Office Chair"},
		{ref: "chair.zip!/chair/model.obj", want: "model"},
		{ref: "https://example.com/models/my%20sofa.obj?x=1#top", want: "my sofa"},
		{ref: "file:///home/u/table.tar.gz", want: "table.tar"},
		{ref: ".hidden", want: ".hidden"},
		{ref: "noext", want: "noext"},
		{ref: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			assert.Equal(t, tt.want, BaseName(tt.ref))
		})
	}
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		ref  string
		want string
	}{
		{ref: "/models/office_chair.obj", want: "Office chair"},
		{ref: "garden--bench__v2.obj", want: "Garden bench v2"},
		{ref: "archive.zip!/dir/élan.obj", want: "Élan"},
		{ref: "/", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			assert.Equal(t, tt.want, DisplayName(tt.ref))
		})
	}
}

func TestSanitizeBaseName(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{name: "chair", want: "chair"},
		{name: "Office Chair-v2.final", want: "Office Chair-v2.final"},
		{name: "chair/../../etc", want: FallbackBaseName},
		{name: "stühl", want: FallbackBaseName},
		{name: "a:b", want: FallbackBaseName},
		{name: "", want: FallbackBaseName},
		{name: ".hidden", want: FallbackBaseName},
		{name: "..", want: FallbackBaseName},
		{name: "chair.v2", want: "chair.v2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeBaseName(tt.name))
		})
	}
}
