package dynload

import (
	"strings"
	"unicode/utf16"
	"unsafe"

	"github.com/pkg/errors"
)

const (
	// maxStringLen bounds the NUL scan of native strings. Longer strings indicate a missing terminator.
	maxStringLen = 1 << 20
	// Addresses inside the first page are never mapped.
	minValidAddress = 4096
)

// CstringToGo converts a NUL-terminated UTF-8 string owned by native code to a Go string.
// Returns empty string if ptr is 0 (null) or points into the zero page.
func CstringToGo(ptr uintptr) string {
	if ptr < minValidAddress {
		return ""
	}

	// #nosec G103 -- reading a C string handed out by the native library.
	base := unsafe.Pointer(ptr)
	length := 0
	for length < maxStringLen && *(*byte)(unsafe.Add(base, length)) != 0 {
		length++
	}
	return string(unsafe.Slice((*byte)(base), length))
}

// GoToCstring converts a Go string to a NUL-terminated byte slice suitable for passing to C functions.
// Returns the byte slice (which must be kept alive by the caller to prevent GC) and a uintptr to its first byte.
//
// IMPORTANT: The caller MUST keep the returned []byte alive for as long as the C function might access it.
// Example usage:
//
//	nameBytes, namePtr := GoToCstring("magic.mgc")
//	ret := cFunction(namePtr)  // nameBytes must stay in scope here
func GoToCstring(s string) ([]byte, uintptr) {
	b := append([]byte(s), 0)
	return b, uintptr(unsafe.Pointer(&b[0]))
}

// UTF16PtrToString converts a NUL-terminated UTF-16 (wchar_t on Windows) string to a Go string.
func UTF16PtrToString(ptr uintptr) string {
	if ptr < minValidAddress {
		return ""
	}

	// #nosec G103 -- reading a wide string handed out by the native library.
	base := unsafe.Pointer(ptr)
	length := 0
	for length < maxStringLen && *(*uint16)(unsafe.Add(base, length*2)) != 0 {
		length++
	}
	return string(utf16.Decode(unsafe.Slice((*uint16)(base), length)))
}

// GoToUTF16 converts a Go string to a NUL-terminated UTF-16 slice.
// The same keep-alive rule as GoToCstring applies to the returned slice.
func GoToUTF16(s string) ([]uint16, uintptr) {
	u := append(utf16.Encode([]rune(s)), 0)
	return u, uintptr(unsafe.Pointer(&u[0]))
}

// ptrToString decodes ptr following convention.
func ptrToString(ptr uintptr, convention StringConvention) string {
	if convention == ConventionUTF16 {
		return UTF16PtrToString(ptr)
	}
	return CstringToGo(ptr)
}

// stringToPtr encodes s following convention. The returned backing object must be kept
// alive by the caller until native code has finished using the returned pointer.
func stringToPtr(s string, convention StringConvention) (uintptr, any, error) {
	if strings.IndexByte(s, 0) >= 0 {
		return 0, nil, errors.Wrapf(ErrInvalidArgument, "string %q contains a NUL byte", s)
	}
	if convention == ConventionUTF16 {
		u, ptr := GoToUTF16(s)
		return ptr, u, nil
	}
	b, ptr := GoToCstring(s)
	return ptr, b, nil
}
