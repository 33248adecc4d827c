/*
 * MIT License
 *
 * Copyright (c) 2023 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package xmlrpc carries the RPC substrate shared by the directory client,
// the peer client and the node to node server: a minimal XML-RPC value codec
// bound to the type set the graph protocol uses (int, boolean, string,
// double, base64, array and struct), an http client with bounded retry, and an http
// server dispatching method calls to registered handlers.
package xmlrpc

import (
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	liberr "github.com/nabbar/golib/errors"
)

func escape(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}

func encodeValue(b *strings.Builder, v interface{}) liberr.Error {
	b.WriteString("<value>")

	switch t := v.(type) {
	case nil:
		b.WriteString("<boolean>0</boolean>")
	case bool:
		if t {
			b.WriteString("<boolean>1</boolean>")
		} else {
			b.WriteString("<boolean>0</boolean>")
		}
	case int:
		b.WriteString("<i4>" + strconv.Itoa(t) + "</i4>")
	case int32:
		b.WriteString("<i4>" + strconv.Itoa(int(t)) + "</i4>")
	case int64:
		b.WriteString("<i4>" + strconv.FormatInt(t, 10) + "</i4>")
	case uint32:
		b.WriteString("<i4>" + strconv.FormatUint(uint64(t), 10) + "</i4>")
	case float64:
		b.WriteString("<double>" + strconv.FormatFloat(t, 'g', -1, 64) + "</double>")
	case string:
		b.WriteString("<string>" + escape(t) + "</string>")
	case []byte:
		b.WriteString("<base64>" + base64.StdEncoding.EncodeToString(t) + "</base64>")
	case []interface{}:
		b.WriteString("<array><data>")
		for _, i := range t {
			if e := encodeValue(b, i); e != nil {
				return e
			}
		}
		b.WriteString("</data></array>")
	case []string:
		b.WriteString("<array><data>")
		for _, i := range t {
			b.WriteString("<value><string>" + escape(i) + "</string></value>")
		}
		b.WriteString("</data></array>")
	case map[string]interface{}:
		b.WriteString("<struct>")
		for k, i := range t {
			b.WriteString("<member><name>" + escape(k) + "</name>")
			if e := encodeValue(b, i); e != nil {
				return e
			}
			b.WriteString("</member>")
		}
		b.WriteString("</struct>")
	default:
		return ErrorEncode.Error(fmt.Errorf("unsupported type %T", v))
	}

	b.WriteString("</value>")
	return nil
}

// EncodeCall renders a complete methodCall document for the given method and
// positional parameters.
func EncodeCall(method string, params []interface{}) (string, liberr.Error) {
	var b strings.Builder

	b.WriteString(xml.Header)
	b.WriteString("<methodCall><methodName>" + escape(method) + "</methodName><params>")

	for _, p := range params {
		b.WriteString("<param>")
		if e := encodeValue(&b, p); e != nil {
			return "", e
		}
		b.WriteString("</param>")
	}

	b.WriteString("</params></methodCall>")
	return b.String(), nil
}

// EncodeResponse renders a methodResponse document carrying a single value.
func EncodeResponse(value interface{}) (string, liberr.Error) {
	var b strings.Builder

	b.WriteString(xml.Header)
	b.WriteString("<methodResponse><params><param>")

	if e := encodeValue(&b, value); e != nil {
		return "", e
	}

	b.WriteString("</param></params></methodResponse>")
	return b.String(), nil
}

// EncodeFault renders a methodResponse fault document.
func EncodeFault(code int, msg string) string {
	var b strings.Builder

	b.WriteString(xml.Header)
	b.WriteString("<methodResponse><fault><value><struct>")
	b.WriteString("<member><name>faultCode</name><value><i4>" + strconv.Itoa(code) + "</i4></value></member>")
	b.WriteString("<member><name>faultString</name><value><string>" + escape(msg) + "</string></value></member>")
	b.WriteString("</struct></value></fault></methodResponse>")

	return b.String()
}

// decodeValue consumes the content of a <value> element until its end tag and
// returns the decoded Go value. An untyped value decodes as a string.
func decodeValue(d *xml.Decoder) (interface{}, liberr.Error) {
	var (
		raw string
		res interface{}
		typ bool
	)

	for {
		tok, err := d.Token()
		if err != nil {
			return nil, ErrorDecode.Error(err)
		}

		switch t := tok.(type) {
		case xml.CharData:
			raw += string(t)

		case xml.StartElement:
			typ = true

			switch t.Name.Local {
			case "i4", "int":
				s, e := readText(d, t.Name.Local)
				if e != nil {
					return nil, e
				}
				i, err := strconv.Atoi(strings.TrimSpace(s))
				if err != nil {
					return nil, ErrorDecode.Error(err)
				}
				res = i

			case "boolean":
				s, e := readText(d, t.Name.Local)
				if e != nil {
					return nil, e
				}
				res = strings.TrimSpace(s) == "1"

			case "double":
				s, e := readText(d, t.Name.Local)
				if e != nil {
					return nil, e
				}
				f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
				if err != nil {
					return nil, ErrorDecode.Error(err)
				}
				res = f

			case "string":
				s, e := readText(d, t.Name.Local)
				if e != nil {
					return nil, e
				}
				res = s

			case "base64":
				s, e := readText(d, t.Name.Local)
				if e != nil {
					return nil, e
				}
				r, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
				if err != nil {
					return nil, ErrorDecode.Error(err)
				}
				res = r

			case "array":
				r, e := decodeArray(d)
				if e != nil {
					return nil, e
				}
				res = r

			case "struct":
				r, e := decodeStruct(d)
				if e != nil {
					return nil, e
				}
				res = r

			default:
				return nil, ErrorDecode.Error(fmt.Errorf("unexpected element %s", t.Name.Local))
			}

		case xml.EndElement:
			if t.Name.Local == "value" {
				if typ {
					return res, nil
				}
				return raw, nil
			}
		}
	}
}

func readText(d *xml.Decoder, name string) (string, liberr.Error) {
	var s string

	for {
		tok, err := d.Token()
		if err != nil {
			return "", ErrorDecode.Error(err)
		}

		switch t := tok.(type) {
		case xml.CharData:
			s += string(t)
		case xml.EndElement:
			if t.Name.Local == name {
				return s, nil
			}
		case xml.StartElement:
			return "", ErrorDecode.Error(fmt.Errorf("unexpected element %s", t.Name.Local))
		}
	}
}

func decodeArray(d *xml.Decoder) ([]interface{}, liberr.Error) {
	var res = make([]interface{}, 0)

	for {
		tok, err := d.Token()
		if err != nil {
			return nil, ErrorDecode.Error(err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "value" {
				v, e := decodeValue(d)
				if e != nil {
					return nil, e
				}
				res = append(res, v)
			}
		case xml.EndElement:
			if t.Name.Local == "array" {
				return res, nil
			}
		}
	}
}

func decodeStruct(d *xml.Decoder) (map[string]interface{}, liberr.Error) {
	var (
		res = make(map[string]interface{})
		key string
	)

	for {
		tok, err := d.Token()
		if err != nil {
			return nil, ErrorDecode.Error(err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "name":
				s, e := readText(d, "name")
				if e != nil {
					return nil, e
				}
				key = s
			case "value":
				v, e := decodeValue(d)
				if e != nil {
					return nil, e
				}
				res[key] = v
			}
		case xml.EndElement:
			if t.Name.Local == "struct" {
				return res, nil
			}
		}
	}
}

// DecodeCall parses a methodCall document and returns the method name and
// its positional parameters.
func DecodeCall(r io.Reader) (string, []interface{}, liberr.Error) {
	var (
		d      = xml.NewDecoder(r)
		method string
		params = make([]interface{}, 0)
	)

	for {
		tok, err := d.Token()
		if err == io.EOF {
			break
		} else if err != nil {
			return "", nil, ErrorDecode.Error(err)
		}

		if t, k := tok.(xml.StartElement); k {
			switch t.Name.Local {
			case "methodName":
				s, e := readText(d, "methodName")
				if e != nil {
					return "", nil, e
				}
				method = strings.TrimSpace(s)
			case "value":
				v, e := decodeValue(d)
				if e != nil {
					return "", nil, e
				}
				params = append(params, v)
			}
		}
	}

	if len(method) == 0 {
		return "", nil, ErrorDecode.Error(fmt.Errorf("missing method name"))
	}

	return method, params, nil
}

// DecodeResponse parses a methodResponse document and returns its single
// value, or an ErrorFault carrying the fault string.
func DecodeResponse(r io.Reader) (interface{}, liberr.Error) {
	var (
		d     = xml.NewDecoder(r)
		fault bool
	)

	for {
		tok, err := d.Token()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, ErrorDecode.Error(err)
		}

		if t, k := tok.(xml.StartElement); k {
			switch t.Name.Local {
			case "fault":
				fault = true
			case "value":
				v, e := decodeValue(d)
				if e != nil {
					return nil, e
				}
				if fault {
					return nil, faultError(v)
				}
				return v, nil
			}
		}
	}

	return nil, ErrorResponse.Error(fmt.Errorf("empty response"))
}

func faultError(v interface{}) liberr.Error {
	if m, k := v.(map[string]interface{}); k {
		var (
			c, _ = m["faultCode"].(int)
			s, _ = m["faultString"].(string)
		)
		return ErrorFault.Error(fmt.Errorf("fault %d: %s", c, s))
	}

	return ErrorFault.Error(nil)
}
