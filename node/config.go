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

package node

import (
	"errors"
	"os"

	libval "github.com/go-playground/validator/v10"
	libdur "github.com/nabbar/golib/duration"
	liberr "github.com/nabbar/golib/errors"
	libsiz "github.com/nabbar/golib/size"

	"github.com/nabbar/rosnet/names"
)

const (
	// EnvMasterURI carries the directory endpoint.
	EnvMasterURI = "ROS_MASTER_URI"

	// EnvHostname carries the advertised hostname.
	EnvHostname = "ROS_HOSTNAME"

	// EnvIP carries the advertised IP, taking precedence over EnvHostname.
	EnvIP = "ROS_IP"

	// EnvNamespace carries the default namespace.
	EnvNamespace = "ROS_NAMESPACE"

	// DefaultMasterURI is used when the environment carries no directory
	// endpoint.
	DefaultMasterURI = "http://localhost:11311/"

	// DefaultDgramSize is the datagram size offered when none is configured.
	DefaultDgramSize = 1500
)

// Config gathers everything one node needs to join the graph. Name is the
// only mandatory field; zero ports ask the system for ephemeral ones.
type Config struct {
	// Name is the node name, resolved against Namespace.
	Name string `json:"name" yaml:"name" mapstructure:"name" validate:"required"`

	// Namespace prefixes every relative name, env by default.
	Namespace string `json:"namespace,omitempty" yaml:"namespace,omitempty" mapstructure:"namespace"`

	// MasterURI locates the directory server, env by default.
	MasterURI string `json:"masterUri,omitempty" yaml:"masterUri,omitempty" mapstructure:"masterUri" validate:"omitempty,url"`

	// Host is the advertised host, env by default.
	Host string `json:"host,omitempty" yaml:"host,omitempty" mapstructure:"host"`

	// BindAddr is the listen address of the three listeners.
	BindAddr string `json:"bindAddr,omitempty" yaml:"bindAddr,omitempty" mapstructure:"bindAddr"`

	// XMLRPCPort binds the slave endpoint, ephemeral when zero.
	XMLRPCPort int `json:"xmlrpcPort,omitempty" yaml:"xmlrpcPort,omitempty" mapstructure:"xmlrpcPort" validate:"gte=0,lte=65535"`

	// TCPPort binds the stream listener, ephemeral when zero.
	TCPPort int `json:"tcpPort,omitempty" yaml:"tcpPort,omitempty" mapstructure:"tcpPort" validate:"gte=0,lte=65535"`

	// UDPPort binds the datagram socket, ephemeral when zero.
	UDPPort int `json:"udpPort,omitempty" yaml:"udpPort,omitempty" mapstructure:"udpPort" validate:"gte=0,lte=65535"`

	// DgramSize is the datagram size offered on datagram negotiation.
	DgramSize libsiz.Size `json:"dgramSize,omitempty" yaml:"dgramSize,omitempty" mapstructure:"dgramSize"`

	// InitTimeout bounds the initial directory contact; zero tries once.
	InitTimeout libdur.Duration `json:"initTimeout,omitempty" yaml:"initTimeout,omitempty" mapstructure:"initTimeout"`

	// Remaps seeds the remap table, usually from ParseArgs.
	Remaps map[string]string `json:"remaps,omitempty" yaml:"remaps,omitempty" mapstructure:"remaps"`
}

// NewConfig builds a Config for the given node name from the environment and
// the 'name:=value' invocation arguments; the double underscore specials
// override name, namespace, host and directory endpoint.
func NewConfig(name string, args []string) Config {
	var cfg = Config{
		Name:      name,
		Namespace: os.Getenv(EnvNamespace),
		MasterURI: os.Getenv(EnvMasterURI),
		Host:      os.Getenv(EnvHostname),
	}

	if ip := os.Getenv(EnvIP); len(ip) > 0 {
		cfg.Host = ip
	}

	p := names.ParseArgs(args)

	if len(p.Name) > 0 {
		cfg.Name = p.Name
	}

	if len(p.Namespace) > 0 {
		cfg.Namespace = p.Namespace
	}

	if len(p.Master) > 0 {
		cfg.MasterURI = p.Master
	}

	if len(p.Hostname) > 0 {
		cfg.Host = p.Hostname
	}

	if len(p.IP) > 0 {
		cfg.Host = p.IP
	}

	cfg.Remaps = p.Remaps

	return cfg
}

// Validate checks the configuration and applies defaults in place.
func (c *Config) Validate() liberr.Error {
	if len(c.MasterURI) == 0 {
		c.MasterURI = DefaultMasterURI
	}

	if len(c.Host) == 0 {
		c.Host = "127.0.0.1"
	}

	if len(c.BindAddr) == 0 {
		c.BindAddr = c.Host
	}

	if c.DgramSize == 0 {
		c.DgramSize = DefaultDgramSize
	}

	err := libval.New().Struct(c)
	if err == nil {
		return nil
	}

	res := ErrorConfigInvalid.Error(nil)

	var inv *libval.InvalidValidationError
	if errors.As(err, &inv) {
		res.Add(inv)
		return res
	}

	var lst libval.ValidationErrors
	if errors.As(err, &lst) {
		for _, f := range lst {
			res.Add(f)
		}
	}

	return res
}
