package dynload

import (
	"runtime"
	"strconv"
	"strings"
	"testing"
	"unicode/utf8"
	"unsafe"

	"github.com/pkg/errors"
)

var conversionCases = []struct {
	name  string
	input string
}{
	{"empty string", ""},
	{"simple ascii", "libz.so.1"},
	{"with spaces", "Program Files"},
	{"with control chars", "line\tbreak\n"},
	{"unicode", "Grüße, 世界"},
	{"astral plane", "lib 🚀 loader"},
	{"long string", strings.Repeat("z", 4096)},
}

func TestGoToCstring(t *testing.T) {
	for _, tt := range conversionCases {
		t.Run(tt.name, func(t *testing.T) {
			buf, ptr := GoToCstring(tt.input)

			if len(buf) != len(tt.input)+1 {
				t.Fatalf("expected buffer length %d, got %d", len(tt.input)+1, len(buf))
			}
			if buf[len(buf)-1] != 0 {
				t.Fatal("expected NUL terminator")
			}
			if ptr == 0 {
				t.Fatal("expected non-null pointer")
			}
			if got := CstringToGo(ptr); got != tt.input {
				t.Fatalf("expected %q, got %q", tt.input, got)
			}
			if !utf8.ValidString(CstringToGo(ptr)) {
				t.Fatal("decoded string is not valid UTF-8")
			}
		})
	}
}

func TestGoToUTF16(t *testing.T) {
	for _, tt := range conversionCases {
		t.Run(tt.name, func(t *testing.T) {
			buf, ptr := GoToUTF16(tt.input)

			if buf[len(buf)-1] != 0 {
				t.Fatal("expected NUL terminator")
			}
			if got := UTF16PtrToString(ptr); got != tt.input {
				t.Fatalf("expected %q, got %q", tt.input, got)
			}
		})
	}
}

func TestGoToUTF16SurrogatePairs(t *testing.T) {
	buf, _ := GoToUTF16("🚀")
	// One astral rune encodes as a surrogate pair plus the terminator.
	if len(buf) != 3 {
		t.Fatalf("expected 3 code units, got %d: %v", len(buf), buf)
	}
	if buf[0] != 0xD83D || buf[1] != 0xDE80 {
		t.Fatalf("unexpected surrogate pair %#x %#x", buf[0], buf[1])
	}
}

func TestCstringToGoStopsAtFirstNUL(t *testing.T) {
	buf := []byte("first\x00second\x00")
	got := CstringToGo(uintptr(unsafe.Pointer(&buf[0])))
	runtime.KeepAlive(buf)
	if got != "first" {
		t.Fatalf("expected %q, got %q", "first", got)
	}
}

func TestNullAndLowAddresses(t *testing.T) {
	for _, ptr := range []uintptr{0, 1, 100, 1000, 4095} {
		if got := CstringToGo(ptr); got != "" {
			t.Errorf("CstringToGo(%d): expected empty string, got %q", ptr, got)
		}
		if got := UTF16PtrToString(ptr); got != "" {
			t.Errorf("UTF16PtrToString(%d): expected empty string, got %q", ptr, got)
		}
	}
}

func TestStringToPtrFollowsConvention(t *testing.T) {
	for _, convention := range []StringConvention{ConventionUTF8, ConventionUTF16} {
		t.Run(convention.String(), func(t *testing.T) {
			ptr, keep, err := stringToPtr("Grüße", convention)
			if err != nil {
				t.Fatalf("stringToPtr: %v", err)
			}
			if keep == nil {
				t.Fatal("expected a backing object to keep alive")
			}
			if got := ptrToString(ptr, convention); got != "Grüße" {
				t.Fatalf("expected round trip, got %q", got)
			}
		})
	}
}

func TestStringToPtrRejectsEmbeddedNUL(t *testing.T) {
	for _, convention := range []StringConvention{ConventionUTF8, ConventionUTF16} {
		_, _, err := stringToPtr("special\x00chars", convention)
		if !errors.Is(err, ErrInvalidArgument) {
			t.Fatalf("%v: expected ErrInvalidArgument, got %v", convention, err)
		}
	}
}

func TestLoaderStringConventionOverride(t *testing.T) {
	loader := newTestLoader(t, &fakeBinding{}, WithStringConvention(ConventionUTF16))
	if loader.StringConvention() != ConventionUTF16 {
		t.Fatalf("expected UTF-16 convention, got %v", loader.StringConvention())
	}

	ptr, keep, err := loader.StringToPtr("wide")
	if err != nil {
		t.Fatalf("StringToPtr: %v", err)
	}
	if got := UTF16PtrToString(ptr); got != "wide" {
		t.Fatalf("expected UTF-16 encoding, got %q", got)
	}
	_ = keep

	if err := loader.SetStringConvention(ConventionUTF8); err != nil {
		t.Fatalf("SetStringConvention: %v", err)
	}
	ptr, keep, err = loader.StringToPtr("narrow")
	if err != nil {
		t.Fatalf("StringToPtr: %v", err)
	}
	if got := loader.PtrToString(ptr); got != "narrow" {
		t.Fatalf("expected %q, got %q", "narrow", got)
	}
	_ = keep

	if err := loader.SetStringConvention(StringConvention(42)); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for unknown convention, got %v", err)
	}
}

func BenchmarkCstringToGo(b *testing.B) {
	for _, size := range []int{8, 128, 1024} {
		buf, ptr := GoToCstring(strings.Repeat("b", size))
		b.Run(strconv.Itoa(size), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				_ = CstringToGo(ptr)
			}
		})
		runtime.KeepAlive(buf)
	}
}
