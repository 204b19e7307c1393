package ber

import (
	"strconv"
	"time"
)

// parseDigits reads n ASCII digits from s starting at pos.
func parseDigits(s string, pos, n int) (int, error) {
	if pos+n > len(s) {
		return 0, ErrInvalidContents
	}
	v, err := strconv.Atoi(s[pos : pos+n])
	if err != nil {
		return 0, ErrInvalidContents
	}
	return v, nil
}

// parseOffset parses a trailing "Z" or "+HHMM"/"-HHMM" offset from s[pos:],
// returning the offset in minutes east of UTC (0 for Z) and whether one
// was found at all.
func parseOffset(s string, pos int) (minutes int, found bool, err error) {
	if pos >= len(s) {
		return 0, false, nil
	}
	if s[pos] == 'Z' {
		if pos != len(s)-1 {
			return 0, false, ErrInvalidContents
		}
		return 0, true, nil
	}
	if s[pos] != '+' && s[pos] != '-' {
		return 0, false, nil
	}
	if len(s)-pos != 5 {
		return 0, false, ErrInvalidContents
	}
	sign := 1
	if s[pos] == '-' {
		sign = -1
	}
	hh, err := parseDigits(s, pos+1, 2)
	if err != nil {
		return 0, false, err
	}
	mm, err := parseDigits(s, pos+3, 2)
	if err != nil {
		return 0, false, err
	}
	if hh > 11 || mm > 59 {
		return 0, false, ErrInvalidContents
	}
	return sign * (hh*60 + mm), true, nil
}

// ParseGeneralizedTime parses a GeneralizedTime content string of the form
// YYYYMMDDHHMMSS[.f...][Z|+-HHMM]. A missing offset is accepted rather
// than failing, since the source treats GeneralizedTime's offset as
// optional; the time is then read in the local zone (time.Local).
func ParseGeneralizedTime(s string) (time.Time, error) {
	if len(s) < 14 {
		return time.Time{}, ErrInvalidContents
	}
	year, err := parseDigits(s, 0, 4)
	if err != nil {
		return time.Time{}, err
	}
	month, err := parseDigits(s, 4, 2)
	if err != nil {
		return time.Time{}, err
	}
	day, err := parseDigits(s, 6, 2)
	if err != nil {
		return time.Time{}, err
	}
	hour, err := parseDigits(s, 8, 2)
	if err != nil {
		return time.Time{}, err
	}
	minute, err := parseDigits(s, 10, 2)
	if err != nil {
		return time.Time{}, err
	}
	second, err := parseDigits(s, 12, 2)
	if err != nil {
		return time.Time{}, err
	}

	pos := 14
	nsec := 0
	if pos < len(s) && s[pos] == '.' {
		start := pos + 1
		end := start
		for end < len(s) && s[end] >= '0' && s[end] <= '9' {
			end++
		}
		if end == start {
			return time.Time{}, ErrInvalidContents
		}
		frac, ferr := strconv.ParseFloat("0."+s[start:end], 64)
		if ferr != nil {
			return time.Time{}, ErrInvalidContents
		}
		nsec = int(frac * float64(time.Second))
		pos = end
	}

	offsetMin, hasOffset, err := parseOffset(s, pos)
	if err != nil {
		return time.Time{}, err
	}

	loc := time.UTC
	if hasOffset && offsetMin != 0 {
		loc = time.FixedZone("", offsetMin*60)
	} else if !hasOffset {
		loc = time.Local
	}
	return time.Date(year, time.Month(month), day, hour, minute, second, nsec, loc), nil
}

// ParseUTCTime parses a UTCTime content string of the form
// YYMMDDHHMM[SS]{Z|+-HHMM}. Unlike GeneralizedTime, the trailing Z/offset
// is mandatory here. The two-digit year pivots at 50: 00-50 maps to
// 2000-2050, 51-99 maps to 1951-1999.
func ParseUTCTime(s string) (time.Time, error) {
	if len(s) < 10 {
		return time.Time{}, ErrInvalidContents
	}
	yy, err := parseDigits(s, 0, 2)
	if err != nil {
		return time.Time{}, err
	}
	month, err := parseDigits(s, 2, 2)
	if err != nil {
		return time.Time{}, err
	}
	day, err := parseDigits(s, 4, 2)
	if err != nil {
		return time.Time{}, err
	}
	hour, err := parseDigits(s, 6, 2)
	if err != nil {
		return time.Time{}, err
	}
	minute, err := parseDigits(s, 8, 2)
	if err != nil {
		return time.Time{}, err
	}

	pos := 10
	second := 0
	if pos+2 <= len(s) && s[pos] >= '0' && s[pos] <= '9' {
		second, err = parseDigits(s, pos, 2)
		if err != nil {
			return time.Time{}, err
		}
		pos += 2
	}

	offsetMin, hasOffset, err := parseOffset(s, pos)
	if err != nil {
		return time.Time{}, err
	}
	if !hasOffset {
		return time.Time{}, ErrInvalidContents
	}

	year := 1900 + yy
	if yy <= 50 {
		year = 2000 + yy
	}

	loc := time.UTC
	if offsetMin != 0 {
		loc = time.FixedZone("", offsetMin*60)
	}
	return time.Date(year, time.Month(month), day, hour, minute, second, 0, loc), nil
}

// EncodeGeneralizedTime produces the full TLV encoding of t as a
// GeneralizedTime, always in UTC with a trailing "Z".
func EncodeGeneralizedTime(t time.Time) []byte {
	content := t.UTC().Format("20060102150405") + "Z"
	out := []byte{byte(TagGeneralizedTime)}
	out = append(out, EncodeLength(len(content))...)
	return append(out, content...)
}

// EncodeUTCTime produces the full TLV encoding of t as a UTCTime, always
// in UTC with a trailing "Z".
func EncodeUTCTime(t time.Time) []byte {
	content := t.UTC().Format("060102150405") + "Z"
	out := []byte{byte(TagUTCTime)}
	out = append(out, EncodeLength(len(content))...)
	return append(out, content...)
}

// DecodeGeneralizedTime reads a tagged GeneralizedTime from the front of buf.
func DecodeGeneralizedTime(buf []byte, tagCheck bool) (t time.Time, consumed int, err error) {
	return decodeTimeTLV(buf, tagCheck, TagGeneralizedTime, ParseGeneralizedTime)
}

// DecodeUTCTime reads a tagged UTCTime from the front of buf.
func DecodeUTCTime(buf []byte, tagCheck bool) (t time.Time, consumed int, err error) {
	return decodeTimeTLV(buf, tagCheck, TagUTCTime, ParseUTCTime)
}

func decodeTimeTLV(buf []byte, tagCheck bool, tag Tag, parse func(string) (time.Time, error)) (time.Time, int, error) {
	pos := 0
	if tagCheck {
		if len(buf) < 1 || Tag(buf[0]) != tag {
			return time.Time{}, 0, ErrInvalidLengthOrTag
		}
		pos = 1
	}

	length, lenBytes, lerr := DecodeLength(buf[pos:])
	if lerr != nil {
		return time.Time{}, 0, lerr
	}
	pos += lenBytes

	if len(buf) < pos+length {
		return time.Time{}, 0, ErrInvalidLengthOrTag
	}
	content := buf[pos : pos+length]
	pos += length

	t, err := parse(string(content))
	if err != nil {
		return time.Time{}, 0, err
	}
	return t, pos, nil
}
