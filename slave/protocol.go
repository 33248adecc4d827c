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

// Package slave carries the node to node RPC plane: the peer client whose
// single call is requestTopic, and the slave server every node exposes for
// topic negotiation, publisher updates and introspection.
package slave

import liberr "github.com/nabbar/golib/errors"

const (
	// ProtocolTCP is the streaming transport name on the wire.
	ProtocolTCP = "TCPROS"

	// ProtocolUDP is the datagram transport name on the wire.
	ProtocolUDP = "UDPROS"
)

// ProtocolRequest is one candidate entry of a requestTopic call, ordered by
// the subscriber's transport preference. The datagram fields are meaningful
// for ProtocolUDP only.
type ProtocolRequest struct {
	Name      string
	Header    []byte // subscriber connection header bytes
	Host      string // subscriber advertised host
	Port      int    // subscriber datagram port
	DgramSize int
}

func (p ProtocolRequest) encode() []interface{} {
	if p.Name == ProtocolUDP {
		return []interface{}{p.Name, p.Header, p.Host, p.Port, p.DgramSize}
	}

	return []interface{}{p.Name}
}

// ProtocolResponse is the accepted protocol descriptor returned by the peer.
// The datagram fields are meaningful for ProtocolUDP only.
type ProtocolResponse struct {
	Name      string
	Host      string
	Port      int
	ConnID    uint32 // peer assigned connection id
	DgramSize int    // negotiated datagram size
	Header    []byte // publisher connection header bytes
}

func (p ProtocolResponse) encode() []interface{} {
	if p.Name == ProtocolUDP {
		return []interface{}{p.Name, p.Host, p.Port, int(p.ConnID), p.DgramSize, p.Header}
	}

	return []interface{}{p.Name, p.Host, p.Port}
}

func decodeResponse(v interface{}) (ProtocolResponse, liberr.Error) {
	var res ProtocolResponse

	t, k := v.([]interface{})
	if !k || len(t) < 3 {
		return res, ErrorPeerResponse.Error(nil)
	}

	res.Name, _ = t[0].(string)
	res.Host, _ = t[1].(string)
	res.Port, _ = t[2].(int)

	if res.Name == ProtocolUDP {
		if len(t) < 6 {
			return res, ErrorPeerResponse.Error(nil)
		}

		c, _ := t[3].(int)
		res.ConnID = uint32(c)
		res.DgramSize, _ = t[4].(int)
		res.Header, _ = t[5].([]byte)
	}

	return res, nil
}

func decodeRequests(v interface{}) []ProtocolRequest {
	var res []ProtocolRequest

	t, k := v.([]interface{})
	if !k {
		return res
	}

	for _, i := range t {
		p, k := i.([]interface{})
		if !k || len(p) == 0 {
			continue
		}

		var r ProtocolRequest
		r.Name, _ = p[0].(string)

		if r.Name == ProtocolUDP && len(p) >= 5 {
			r.Header, _ = p[1].([]byte)
			r.Host, _ = p[2].(string)
			r.Port, _ = p[3].(int)
			r.DgramSize, _ = p[4].(int)
		}

		res = append(res, r)
	}

	return res
}
