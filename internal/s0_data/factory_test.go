package s0_data

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/contracts"
	"github.com/ZhengGong-hub/equity-longshort-backtester/pkg/logger"
)

func TestFactory_Open(t *testing.T) {
	f := &Factory{DefaultSource: SourceCSV, DefaultDir: "data", Logger: logger.Nop()}

	tests := []struct {
		source string
		want   string
	}{
		{"", "csv"},
		{SourceCSV, "csv"},
		{SourceParquet, "parquet"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			p, err := f.Open(tt.source, "")
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Name())
		})
	}

	_, err := f.Open(SourcePostgres, "")
	assert.ErrorIs(t, err, contracts.ErrInvalidConfiguration)

	_, err = f.Open("s3", "")
	assert.ErrorIs(t, err, contracts.ErrInvalidConfiguration)
}
