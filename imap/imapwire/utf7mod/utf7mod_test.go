package utf7mod

import "testing"

var tests = []struct {
	dec, enc string
}{
	{dec: "INBOX", enc: "INBOX"},
	{dec: "&", enc: "&-"},
	{dec: "&&", enc: "&-&-"},
	{dec: "Hello, 世界", enc: "Hello, &ThZ1TA-"},
	{dec: "🤓", enc: "&2D7dEw-"},
	{dec: "~peter/mail/台北/日本語", enc: "~peter/mail/&U,BTFw-/&ZeVnLIqe-"},
}

func TestAppendEncode(t *testing.T) {
	for _, test := range tests {
		t.Run(test.dec, func(t *testing.T) {
			enc, err := AppendEncode(nil, []byte(test.dec))
			if err != nil {
				t.Fatal(err)
			}
			if got := string(enc); got != test.enc {
				t.Errorf("encode %q=%q, want %q", test.dec, got, test.enc)
			}
		})
	}
}

func TestAppendDecode(t *testing.T) {
	for _, test := range tests {
		t.Run(test.dec, func(t *testing.T) {
			dec, err := AppendDecode(nil, []byte(test.enc))
			if err != nil {
				t.Fatal(err)
			}
			if got := string(dec); got != test.dec {
				t.Errorf("decode %q=%q, want %q", test.enc, got, test.dec)
			}
		})
	}
}

func TestDecodeInvalid(t *testing.T) {
	for _, enc := range []string{"&ThZ1TA", "&*-"} {
		if _, err := AppendDecode(nil, []byte(enc)); err == nil {
			t.Errorf("decode %q succeeded, want error", enc)
		}
	}
}
