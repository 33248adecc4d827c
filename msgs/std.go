/*
 * MIT License
 *
 * Copyright (c) 2024 Nicolas JUHEL
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

package msgs

import (
	"encoding/binary"
	"errors"
)

var (
	// ErrMessageType is returned when a value of the wrong Go type is given
	// to a codec.
	ErrMessageType = errors.New("unexpected message value type")

	// ErrShortBuffer is returned when the wire bytes end before the value.
	ErrShortBuffer = errors.New("buffer too short for message")
)

// Int8 is the std_msgs/Int8 message.
type Int8 struct {
	Data int8
}

// String is the std_msgs/String message.
type String struct {
	Data string
}

// Empty is the std_msgs/Empty message and both halves of std_srvs/Empty.
type Empty struct{}

type int8Type struct{}

// Int8Type returns the codec of std_msgs/Int8.
func Int8Type() MessageType {
	return int8Type{}
}

func (int8Type) Name() string {
	return "std_msgs/Int8"
}

func (int8Type) MD5Sum() string {
	return "27ffa0c9c4b8fb8492252bcad9e5c57b"
}

func (int8Type) Definition() string {
	return "int8 data\n"
}

func (int8Type) Serialize(msg interface{}) ([]byte, error) {
	if m, k := msg.(Int8); k {
		return []byte{byte(m.Data)}, nil
	} else if m, k := msg.(*Int8); k {
		return []byte{byte(m.Data)}, nil
	}

	return nil, ErrMessageType
}

func (int8Type) Deserialize(b []byte) (interface{}, error) {
	if len(b) < 1 {
		return nil, ErrShortBuffer
	}

	return Int8{Data: int8(b[0])}, nil
}

type stringType struct{}

// StringType returns the codec of std_msgs/String.
func StringType() MessageType {
	return stringType{}
}

func (stringType) Name() string {
	return "std_msgs/String"
}

func (stringType) MD5Sum() string {
	return "992ce8a1687cec8c8bd883ec73ca41d1"
}

func (stringType) Definition() string {
	return "string data\n"
}

func (stringType) Serialize(msg interface{}) ([]byte, error) {
	var s string

	if m, k := msg.(String); k {
		s = m.Data
	} else if m, k := msg.(*String); k {
		s = m.Data
	} else {
		return nil, ErrMessageType
	}

	var b = make([]byte, 4, 4+len(s))
	binary.LittleEndian.PutUint32(b, uint32(len(s)))
	return append(b, s...), nil
}

func (stringType) Deserialize(b []byte) (interface{}, error) {
	if len(b) < 4 {
		return nil, ErrShortBuffer
	}

	l := binary.LittleEndian.Uint32(b)
	if uint32(len(b)-4) < l {
		return nil, ErrShortBuffer
	}

	return String{Data: string(b[4 : 4+l])}, nil
}

type emptyType struct{}

// EmptyType returns the codec of std_msgs/Empty.
func EmptyType() MessageType {
	return emptyType{}
}

func (emptyType) Name() string {
	return "std_msgs/Empty"
}

func (emptyType) MD5Sum() string {
	return "d41d8cd98f00b204e9800998ecf8427e"
}

func (emptyType) Definition() string {
	return ""
}

func (emptyType) Serialize(msg interface{}) ([]byte, error) {
	return []byte{}, nil
}

func (emptyType) Deserialize(b []byte) (interface{}, error) {
	return Empty{}, nil
}

type emptySrv struct{}

// EmptySrvType returns the codec of the std_srvs/Empty service.
func EmptySrvType() ServiceType {
	return emptySrv{}
}

func (emptySrv) Name() string {
	return "std_srvs/Empty"
}

func (emptySrv) MD5Sum() string {
	return "d41d8cd98f00b204e9800998ecf8427e"
}

func (emptySrv) Request() MessageType {
	return emptyType{}
}

func (emptySrv) Response() MessageType {
	return emptyType{}
}
