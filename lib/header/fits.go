// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package header

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	cardLength  = 80
	blockLength = 2880

	// valueColumn is where a fixed-format value starts (after "KEYWORD = ").
	valueColumn = 10

	// continuePrefix opens a long-string continuation card.
	continuePrefix = "CONTINUE  "
)

func encodeFITS(doc *Document) ([]byte, error) {
	var buffer bytes.Buffer
	for position, extension := range doc.extensions {
		var cards []string
		if position == 0 {
			cards = append(cards,
				fixedCard("SIMPLE", "T", "conforms to FITS standard"),
				fixedCard("BITPIX", "8", "array data type"),
				fixedCard("NAXIS", "0", "number of array dimensions"),
				fixedCard("EXTEND", "T", ""),
			)
			if extension.name != PrimaryName {
				cards = append(cards, fixedCard("EXTNAME", quoteString(extension.name), ""))
			}
		} else {
			cards = append(cards,
				fixedCard("XTENSION", quoteString("IMAGE   "), "IMAGE extension"),
				fixedCard("BITPIX", "8", "array data type"),
				fixedCard("NAXIS", "0", "number of array dimensions"),
				fixedCard("PCOUNT", "0", "number of parameters"),
				fixedCard("GCOUNT", "1", "number of groups"),
				fixedCard("EXTNAME", quoteString(extension.name), "extension name"),
			)
		}
		if !printable(extension.name) || len(cards[len(cards)-1]) > cardLength {
			return nil, fmt.Errorf("extension name %q: %w", extension.name, ErrUnencodableValue)
		}

		for _, record := range extension.records {
			recordCards, err := formatRecord(record)
			if err != nil {
				return nil, fmt.Errorf("extension %s keyword %s: %w", extension.name, record.Keyword, err)
			}
			cards = append(cards, recordCards...)
		}
		cards = append(cards, "END")

		for _, text := range cards {
			buffer.WriteString(text)
			buffer.WriteString(strings.Repeat(" ", cardLength-len(text)))
		}
		if remainder := buffer.Len() % blockLength; remainder != 0 {
			buffer.WriteString(strings.Repeat(" ", blockLength-remainder))
		}
	}
	return buffer.Bytes(), nil
}

// fixedCard formats a structural card with the value right-justified
// in columns 11-30, or left-justified when it is a quoted string.
func fixedCard(keyword, value, comment string) string {
	var card string
	if strings.HasPrefix(value, "'") {
		card = fmt.Sprintf("%-8s= %s", keyword, value)
	} else {
		card = fmt.Sprintf("%-8s= %20s", keyword, value)
	}
	if comment != "" {
		card += " / " + comment
	}
	return card
}

func quoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// standardKeyword reports whether keyword fits the eight-character
// FITS keyword alphabet.
func standardKeyword(keyword string) bool {
	if len(keyword) == 0 || len(keyword) > 8 {
		return false
	}
	for i := 0; i < len(keyword); i++ {
		c := keyword[i]
		if !(c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '-' || c == '_') {
			return false
		}
	}
	return true
}

// keywordPrefix returns the card text up to the value: "KEYWORD = "
// for standard keywords, "HIERARCH keyword = " otherwise.
func keywordPrefix(keyword string) (string, error) {
	if standardKeyword(keyword) {
		return fmt.Sprintf("%-8s= ", keyword), nil
	}
	if !printable(keyword) || strings.Contains(keyword, "=") || strings.TrimSpace(keyword) != keyword {
		return "", fmt.Errorf("keyword %q: %w", keyword, ErrUnencodableValue)
	}
	return "HIERARCH " + keyword + " = ", nil
}

// formatRecord renders one record as one or more cards.
func formatRecord(record Record) ([]string, error) {
	prefix, err := keywordPrefix(record.Keyword)
	if err != nil {
		return nil, err
	}
	comment := strings.TrimRight(record.Comment, " ")
	if !printable(comment) {
		return nil, fmt.Errorf("comment: %w", ErrUnencodableValue)
	}

	if text, ok := record.Value.(string); ok {
		return formatString(prefix, text, comment)
	}

	value, err := formatScalar(record.Value)
	if err != nil {
		return nil, err
	}
	card := prefix
	if len(prefix) == valueColumn {
		card += fmt.Sprintf("%20s", value)
	} else {
		card += value
	}
	if comment != "" {
		card += " / " + comment
	}
	if len(card) > cardLength {
		return nil, ErrRecordTooLong
	}
	return []string{card}, nil
}

func formatScalar(value any) (string, error) {
	switch v := value.(type) {
	case nil:
		return "", nil
	case bool:
		if v {
			return "T", nil
		}
		return "F", nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return "", fmt.Errorf("%v: %w", v, ErrUnencodableValue)
		}
		return formatFloat(v), nil
	default:
		return "", fmt.Errorf("type %T: %w", value, ErrUnencodableValue)
	}
}

// formatFloat produces the shortest text that parses back to v and
// always reads as a float ("1.0", "1.0E+21").
func formatFloat(v float64) string {
	text := strconv.FormatFloat(v, 'G', -1, 64)
	if strings.Contains(text, ".") {
		return text
	}
	if mantissa, exponent, ok := strings.Cut(text, "E"); ok {
		return mantissa + ".0E" + exponent
	}
	return text + ".0"
}

// formatString renders a string record, splitting it across CONTINUE
// cards when it does not fit on one. The comment goes on the last card.
func formatString(prefix, value, comment string) ([]string, error) {
	if !printable(value) {
		return nil, fmt.Errorf("string value: %w", ErrUnencodableValue)
	}
	single := prefix + quoteString(value)
	if comment != "" {
		single += " / " + comment
	}
	if len(single) <= cardLength {
		return []string{single}, nil
	}

	// Each non-final chunk carries a trailing '&' inside the quotes.
	firstCapacity := cardLength - len(prefix) - 3
	continueCapacity := cardLength - len(continuePrefix) - 3
	if firstCapacity < 2 {
		return nil, ErrRecordTooLong
	}

	var chunks []string
	var current strings.Builder
	capacity := firstCapacity
	for i := 0; i < len(value); i++ {
		width := 1
		if value[i] == '\'' {
			width = 2
		}
		if current.Len()+width > capacity {
			chunks = append(chunks, current.String())
			current.Reset()
			capacity = continueCapacity
		}
		if value[i] == '\'' {
			current.WriteString("''")
		} else {
			current.WriteByte(value[i])
		}
	}
	chunks = append(chunks, current.String())

	cards := make([]string, len(chunks))
	for i, chunk := range chunks {
		lead := continuePrefix
		if i == 0 {
			lead = prefix
		}
		if i < len(chunks)-1 {
			cards[i] = lead + "'" + chunk + "&'"
		} else {
			cards[i] = lead + "'" + chunk + "'"
		}
	}
	if comment == "" {
		return cards, nil
	}

	last := len(cards) - 1
	if withComment := cards[last] + " / " + comment; len(withComment) <= cardLength {
		cards[last] = withComment
		return cards, nil
	}
	commentCard := continuePrefix + "'' / " + comment
	if len(commentCard) > cardLength {
		return nil, ErrRecordTooLong
	}
	cards[last] = strings.TrimSuffix(cards[last], "'") + "&'"
	return append(cards, commentCard), nil
}

// card is one parsed 80-column header card.
type card struct {
	keyword  string
	value    any
	isString bool
	comment  string
	// valued is false for commentary cards (COMMENT, HISTORY, blank).
	valued bool
}

func parseCard(text string) (card, error) {
	keyword := strings.TrimRight(text[:8], " ")
	switch {
	case keyword == "END":
		return card{keyword: keyword}, nil
	case keyword == "HIERARCH":
		rest := text[9:]
		equals := strings.IndexByte(rest, '=')
		if equals < 0 {
			return card{}, fmt.Errorf("%w: HIERARCH card without '='", ErrMalformedHeader)
		}
		parsed, err := parseValue(rest[equals+1:])
		parsed.keyword = strings.TrimSpace(rest[:equals])
		return parsed, err
	case keyword == "CONTINUE":
		parsed, err := parseValue(text[8:])
		parsed.keyword = keyword
		return parsed, err
	case text[8:10] == "= ":
		parsed, err := parseValue(text[valueColumn:])
		parsed.keyword = keyword
		return parsed, err
	default:
		return card{keyword: keyword}, nil
	}
}

func parseValue(text string) (card, error) {
	text = strings.TrimLeft(text, " ")
	if strings.HasPrefix(text, "'") {
		var value strings.Builder
		i := 1
		for ; i < len(text); i++ {
			if text[i] != '\'' {
				value.WriteByte(text[i])
				continue
			}
			if i+1 < len(text) && text[i+1] == '\'' {
				value.WriteByte('\'')
				i++
				continue
			}
			break
		}
		if i >= len(text) {
			return card{}, fmt.Errorf("%w: unterminated string", ErrMalformedHeader)
		}
		return card{value: value.String(), isString: true, comment: parseComment(text[i+1:]), valued: true}, nil
	}

	token, comment := text, ""
	if slash := strings.IndexByte(text, '/'); slash >= 0 {
		token, comment = text[:slash], parseComment(text[slash:])
	}
	token = strings.TrimSpace(token)
	parsed := card{comment: comment, valued: true}
	switch {
	case token == "":
		parsed.value = nil
	case token == "T":
		parsed.value = true
	case token == "F":
		parsed.value = false
	case strings.ContainsAny(token, ".EeDd"):
		number, err := strconv.ParseFloat(strings.NewReplacer("D", "E", "d", "e").Replace(token), 64)
		if err != nil {
			return card{}, fmt.Errorf("%w: bad number %q", ErrMalformedHeader, token)
		}
		parsed.value = number
	default:
		integer, err := strconv.ParseInt(token, 10, 64)
		if err != nil {
			number, floatErr := strconv.ParseFloat(token, 64)
			if floatErr != nil {
				return card{}, fmt.Errorf("%w: bad value %q", ErrMalformedHeader, token)
			}
			parsed.value = number
		} else {
			parsed.value = integer
		}
	}
	return parsed, nil
}

// parseComment extracts the comment from the text following a value.
func parseComment(rest string) string {
	slash := strings.IndexByte(rest, '/')
	if slash < 0 {
		return ""
	}
	return strings.TrimRight(strings.TrimPrefix(rest[slash+1:], " "), " ")
}

func decodeFITS(data []byte) (*Document, error) {
	if len(data) == 0 || len(data)%cardLength != 0 {
		return nil, fmt.Errorf("%w: length %d is not a multiple of %d", ErrMalformedHeader, len(data), cardLength)
	}
	doc := NewDocument()
	offset := 0
	for hdu := 0; offset < len(data); hdu++ {
		extension, next, err := decodeHDU(data, offset, hdu)
		if err != nil {
			return nil, fmt.Errorf("HDU %d: %w", hdu, err)
		}
		if err := doc.Append(extension); err != nil {
			return nil, err
		}
		offset = next
		for offset < len(data) && strings.TrimSpace(string(data[offset:min(offset+cardLength, len(data))])) == "" {
			offset += cardLength
		}
	}
	return doc, nil
}

// decodeHDU parses one header starting at offset and returns the offset
// of the next HDU.
func decodeHDU(data []byte, offset, hdu int) (*Extension, int, error) {
	name := PrimaryName
	if hdu > 0 {
		name = fmt.Sprintf("HDU%d", hdu)
	}
	var (
		records []Record
		bitpix  int64 = 8
		naxis   []int64
		pcount  int64
		gcount  int64 = 1
		first   = true
		sawEnd  bool
	)

	cardAt := func(position int) string { return string(data[position : position+cardLength]) }

	position := offset
	for ; position+cardLength <= len(data); position += cardLength {
		parsed, err := parseCard(cardAt(position))
		if err != nil {
			return nil, 0, err
		}
		if first {
			want := "XTENSION"
			if hdu == 0 {
				want = "SIMPLE"
			}
			if parsed.keyword != want {
				return nil, 0, fmt.Errorf("%w: first card is %q, want %s", ErrMalformedHeader, parsed.keyword, want)
			}
			first = false
			continue
		}
		if parsed.keyword == "END" {
			sawEnd = true
			position += cardLength
			break
		}
		if !parsed.valued {
			continue
		}

		switch parsed.keyword {
		case "BITPIX":
			bitpix, _ = parsed.value.(int64)
			continue
		case "EXTEND":
			continue
		case "PCOUNT":
			pcount, _ = parsed.value.(int64)
			continue
		case "GCOUNT":
			gcount, _ = parsed.value.(int64)
			continue
		case "EXTNAME":
			if text, ok := parsed.value.(string); ok {
				name = strings.TrimRight(text, " ")
			}
			continue
		case "NAXIS":
			continue
		}
		if strings.HasPrefix(parsed.keyword, "NAXIS") && isReserved(parsed.keyword) {
			length, _ := parsed.value.(int64)
			naxis = append(naxis, length)
			continue
		}

		// Join long strings continued on CONTINUE cards.
		if parsed.isString {
			text := parsed.value.(string)
			for strings.HasSuffix(text, "&") && position+2*cardLength <= len(data) {
				next, err := parseCard(cardAt(position + cardLength))
				if err != nil || next.keyword != "CONTINUE" || !next.isString {
					break
				}
				text = strings.TrimSuffix(text, "&") + next.value.(string)
				parsed.comment = next.comment
				position += cardLength
			}
			parsed.value = text
		}
		records = append(records, Record{Keyword: parsed.keyword, Value: parsed.value, Comment: parsed.comment})
	}
	if !sawEnd {
		return nil, 0, fmt.Errorf("%w: no END card", ErrMalformedHeader)
	}

	// Skip the padding of the header and any data unit.
	next := roundUp(position, blockLength)
	if len(naxis) > 0 {
		size, err := dataUnitSize(bitpix, pcount, gcount, naxis)
		if err != nil {
			return nil, 0, err
		}
		if remaining := int64(len(data) - next); size > remaining {
			next = len(data)
		} else {
			next += roundUp(int(size), blockLength)
		}
	}
	if next > len(data) {
		next = len(data)
	}

	extension, err := NewExtension(name, records)
	if err != nil {
		return nil, 0, err
	}
	return extension, next, nil
}

// dataUnitSize is the byte length of the data unit described by the
// structural keywords.
func dataUnitSize(bitpix, pcount, gcount int64, naxis []int64) (int64, error) {
	switch bitpix {
	case 8, 16, 32, 64, -32, -64:
	default:
		return 0, fmt.Errorf("%w: BITPIX %d", ErrMalformedHeader, bitpix)
	}
	if pcount < 0 || gcount < 0 {
		return 0, fmt.Errorf("%w: PCOUNT %d, GCOUNT %d", ErrMalformedHeader, pcount, gcount)
	}
	elements := int64(1)
	for i, length := range naxis {
		if length < 0 {
			return 0, fmt.Errorf("%w: NAXIS%d %d", ErrMalformedHeader, i+1, length)
		}
		if length != 0 && elements > math.MaxInt64/length {
			return 0, fmt.Errorf("%w: data unit size overflows", ErrMalformedHeader)
		}
		elements *= length
	}
	if elements > math.MaxInt64-pcount {
		return 0, fmt.Errorf("%w: data unit size overflows", ErrMalformedHeader)
	}
	bytesPerElement := max(bitpix, -bitpix) / 8
	size := pcount + elements
	if gcount != 0 && size > math.MaxInt64/(bytesPerElement*gcount) {
		return 0, fmt.Errorf("%w: data unit size overflows", ErrMalformedHeader)
	}
	return bytesPerElement * gcount * size, nil
}

func roundUp(n, multiple int) int {
	if remainder := n % multiple; remainder != 0 {
		return n + multiple - remainder
	}
	return n
}
