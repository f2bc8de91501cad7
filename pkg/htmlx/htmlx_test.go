package htmlx_test

import (
	"testing"

	"github.com/FAU-CDI/harvester/pkg/htmlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

func TestText(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{
			name:   "virtuoso style error page",
			source: "<html><head><title>Error</title><style>p{}</style></head><body><h1>Error 400</h1>\n<p>Virtuoso 37000 Error SP030:\n SPARQL compiler</p><script>var x;</script></body></html>",
			want:   "Error 400 Virtuoso 37000 Error SP030: SPARQL compiler",
		},
		{
			name:   "plain text",
			source: "  Bad   Request ",
			want:   "Bad Request",
		},
		{
			name:   "empty",
			source: "",
			want:   "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := htmlx.Text(tt.source)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIterTree_Stop(t *testing.T) {
	var count int
	for node := range htmlx.IterTree(&html.Node{Type: html.DocumentNode}) {
		assert.NotNil(t, node)
		count++
		break
	}
	assert.Equal(t, 1, count)
}
