// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ipc

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"net"
	"strings"
	"sync"
	"time"
)

// ZAP frame layout: [4 len][1 type][4 id][2 nameLen][name][payload]
const (
	zapHeaderLen    = 1 + 4 + 2
	zapMaxFrame     = 64 * 1024 * 1024 // 64MB max
	zapWriteTimeout = 30 * time.Second

	unixScheme = "unix://"
)

// zapConn carries ZAP frames over a stream connection
type zapConn struct {
	conn    net.Conn
	writeMu sync.Mutex
	header  [4]byte
}

func newZAPConn(conn net.Conn) *zapConn {
	return &zapConn{conn: conn}
}

func (z *zapConn) writeFrame(ctx context.Context, f *frame) error {
	buf, err := encodeZAPFrame(f)
	if err != nil {
		return err
	}

	deadline := time.Now().Add(zapWriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	z.writeMu.Lock()
	defer z.writeMu.Unlock()
	if err := z.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	_, err = z.conn.Write(buf)
	return err
}

func (z *zapConn) readFrame() (*frame, error) {
	if _, err := io.ReadFull(z.conn, z.header[:]); err != nil {
		return nil, err
	}

	msgLen := binary.BigEndian.Uint32(z.header[:])
	if msgLen < zapHeaderLen || msgLen > zapMaxFrame {
		return nil, fmt.Errorf("%w: length %d", ErrInvalidFrame, msgLen)
	}

	msg := make([]byte, msgLen)
	if _, err := io.ReadFull(z.conn, msg); err != nil {
		return nil, err
	}
	return decodeZAPFrame(msg)
}

func (z *zapConn) Close() error {
	return z.conn.Close()
}

func encodeZAPFrame(f *frame) ([]byte, error) {
	if len(f.Name) > math.MaxUint16 {
		return nil, fmt.Errorf("%w: name of %d bytes", ErrInvalidFrame, len(f.Name))
	}
	msgLen := zapHeaderLen + len(f.Name) + len(f.Payload)
	if msgLen > zapMaxFrame {
		return nil, fmt.Errorf("%w: frame of %d bytes", ErrInvalidFrame, msgLen)
	}

	buf := make([]byte, 4+msgLen)
	binary.BigEndian.PutUint32(buf[0:4], uint32(msgLen))
	buf[4] = byte(f.Type)
	binary.BigEndian.PutUint32(buf[5:9], f.ID)
	binary.BigEndian.PutUint16(buf[9:11], uint16(len(f.Name)))
	copy(buf[11:], f.Name)
	copy(buf[11+len(f.Name):], f.Payload)
	return buf, nil
}

// decodeZAPFrame decodes a frame without its length prefix.
func decodeZAPFrame(msg []byte) (*frame, error) {
	if len(msg) < zapHeaderLen {
		return nil, fmt.Errorf("%w: short header", ErrInvalidFrame)
	}
	nameLen := int(binary.BigEndian.Uint16(msg[5:7]))
	if len(msg) < zapHeaderLen+nameLen {
		return nil, fmt.Errorf("%w: short name", ErrInvalidFrame)
	}
	return &frame{
		Type:    MessageType(msg[0]),
		ID:      binary.BigEndian.Uint32(msg[1:5]),
		Name:    string(msg[7 : 7+nameLen]),
		Payload: msg[7+nameLen:],
	}, nil
}

// zapNetwork maps an address to a network: "unix:///run/ipc.sock" is a unix
// socket, anything else is TCP.
func zapNetwork(addr string) (network, address string) {
	if path, ok := strings.CutPrefix(addr, unixScheme); ok {
		return "unix", path
	}
	return "tcp", addr
}

// dialZAP creates a ZAP client
func dialZAP(ctx context.Context, addr string, o *dialOptions) (Client, error) {
	network, address := zapNetwork(addr)
	var d net.Dialer
	conn, err := d.DialContext(ctx, network, address)
	if err != nil {
		return nil, fmt.Errorf("zap dial: %w", err)
	}
	return newPeerClient(newZAPConn(conn), o), nil
}

// listenZAP creates a ZAP server
func listenZAP(addr string, o *serverOptions) (Server, error) {
	network, address := zapNetwork(addr)
	listener, err := net.Listen(network, address)
	if err != nil {
		return nil, fmt.Errorf("zap listen: %w", err)
	}
	return newFrameServer(&zapAcceptor{listener: listener, network: network}, o), nil
}

type zapAcceptor struct {
	listener net.Listener
	network  string
}

func (a *zapAcceptor) accept() (frameConn, error) {
	conn, err := a.listener.Accept()
	if err != nil {
		return nil, err
	}
	return newZAPConn(conn), nil
}

func (a *zapAcceptor) close() error {
	return a.listener.Close()
}

func (a *zapAcceptor) addr() string {
	if a.network == "unix" {
		return unixScheme + a.listener.Addr().String()
	}
	return a.listener.Addr().String()
}
