package wire

import (
	"fmt"
	"regexp"

	hashiversion "github.com/hashicorp/go-version"
)

// CookieSize is the fixed wire size of the version banner exchanged
// once per direction at the start of every TCP connection.
const CookieSize = 24

const cookiePrefix = "vrpn: ver. "

// Version is a two-part version number. Only Major participates in
// wire compatibility checks; Minor is informational.
type Version struct {
	Major, Minor uint8
}

func (v Version) String() string { return fmt.Sprintf("%02d.%02d", v.Major, v.Minor) }

// asHashiVersion lets the major.minor compatibility check reuse a real
// version-comparison library instead of hand-rolled digit arithmetic.
func (v Version) asHashiVersion() (*hashiversion.Version, error) {
	return hashiversion.NewVersion(fmt.Sprintf("%d.%d", v.Major, v.Minor))
}

// NetworkVersion and FileVersion are the two cookie flavors defined by
// the protocol: the current network wire version, and the version used
// by VRPN's file-based record/playback format.
var (
	NetworkVersion = Version{Major: 7, Minor: 35}
	FileVersion    = Version{Major: 4, Minor: 0}
)

// LogMode is the single-digit log-mode bitfield carried in the cookie.
// It is informational and does not affect compatibility.
type LogMode uint8

// Cookie is the 24-byte ASCII handshake record.
type Cookie struct {
	Version Version
	LogMode LogMode
}

// NewNetworkCookie builds the cookie sent at the start of a live
// network connection.
func NewNetworkCookie() Cookie { return Cookie{Version: NetworkVersion} }

// NewFileCookie builds the cookie written at the start of a VRPN
// recording file.
func NewFileCookie() Cookie { return Cookie{Version: FileVersion} }

// Encode renders the cookie as its fixed 24-byte ASCII form:
// "vrpn: ver. MM.mm  L" followed by NUL padding to CookieSize.
func (c Cookie) Encode() []byte {
	buf := make([]byte, 0, CookieSize)
	buf = append(buf, cookiePrefix...)
	buf = append(buf, fmt.Sprintf("%02d.%02d  %d", c.Version.Major, c.Version.Minor, c.LogMode)...)
	for len(buf) < CookieSize {
		buf = append(buf, 0)
	}
	return buf
}

var cookiePattern = regexp.MustCompile(`^vrpn: ver\. (\d{2})\.(\d{2})  (\d)\x00{5}$`)

// DecodeCookie strictly parses a 24-byte cookie: every literal byte
// must match, and the digit fields must be decimal. Returns
// ErrUnexpectedCookieBytes on any structural mismatch.
func DecodeCookie(b []byte) (Cookie, error) {
	if len(b) != CookieSize {
		return Cookie{}, fmt.Errorf("%w: wanted %d bytes, got %d", ErrUnexpectedCookieBytes, CookieSize, len(b))
	}
	m := cookiePattern.FindSubmatch(b)
	if m == nil {
		return Cookie{}, ErrUnexpectedCookieBytes
	}
	var major, minor, logMode int
	// The pattern already constrains these to two (or one) decimal
	// digits, so Sscanf cannot fail here.
	fmt.Sscanf(string(m[1]), "%d", &major)
	fmt.Sscanf(string(m[2]), "%d", &minor)
	fmt.Sscanf(string(m[3]), "%d", &logMode)
	return Cookie{
		Version: Version{Major: uint8(major), Minor: uint8(minor)},
		LogMode: LogMode(logMode),
	}, nil
}

// CheckNetworkCompatible compares only the major version against the
// current network cookie version.
func CheckNetworkCompatible(v Version) error {
	return checkMajorCompatible(v, NetworkVersion)
}

// CheckFileCompatible compares only the major version against the file
// cookie version.
func CheckFileCompatible(v Version) error {
	return checkMajorCompatible(v, FileVersion)
}

func checkMajorCompatible(actual, expected Version) error {
	av, err := actual.asHashiVersion()
	if err != nil {
		return &ErrVersionMismatch{Actual: actual, Expected: expected}
	}
	ev, err := expected.asHashiVersion()
	if err != nil {
		return &ErrVersionMismatch{Actual: actual, Expected: expected}
	}
	if av.Segments()[0] != ev.Segments()[0] {
		return &ErrVersionMismatch{Actual: actual, Expected: expected}
	}
	return nil
}
