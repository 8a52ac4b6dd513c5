package logx_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"items_seller/pkg/logx"
)

func TestSensitiveDataMaskerMask(t *testing.T) {
	rq := require.New(t)

	masker := logx.NewSensitiveDataMasker()

	testCases := []struct {
		name   string
		input  []byte
		output []byte
	}{
		{
			name:   "Password",
			input:  []byte(`{"hello":"world","password":"abc123"}`),
			output: []byte(`{"hello":"world","password":"[MASKED]"}`),
		},
		{
			name:   "Password capital letter",
			input:  []byte(`{"hello":"world","Password":"abc123"}`),
			output: []byte(`{"hello":"world","Password":"[MASKED]"}`),
		},
		{
			name:   "Account secrets",
			input:  []byte(`{"shared_secret":"aGVsbG8=","identity_secret":"d29ybGQ="}`),
			output: []byte(`{"shared_secret":"[MASKED]","identity_secret":"[MASKED]"}`),
		},
		{
			name:   "Session tokens",
			input:  []byte(`{"sessionid":"17ab","steamLoginSecure":"7656119%7C%7Cabc","access_token":"eyJhbGciOiJFUzI1NiJ9"}`),
			output: []byte(`{"sessionid":"[MASKED]","steamLoginSecure":"[MASKED]","access_token":"[MASKED]"}`),
		},
		{
			name:   "Cookie header",
			input:  []byte("GET /market HTTP/1.1\r\nCookie: sessionid=17ab; steamLoginSecure=7656119\r\n\r\n"),
			output: []byte("GET /market HTTP/1.1\r\nCookie: [MASKED]\r\n\r\n"),
		},
		{
			name:   "Form body",
			input:  []byte(`username=armoury_017&password=abc123&remember=1`),
			output: []byte(`username=armoury_017&password=[MASKED]&remember=1`),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(*testing.T) {
			output := masker.Mask(tc.input)

			rq.Equal(tc.output, output, "%s vs %s", tc.output, output)
		})
	}
}
