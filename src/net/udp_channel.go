package net

import (
	"errors"
	"net"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	errNotAdvertisable = errors.New("local bind address is not advertisable")
	errNotUDP          = errors.New("local address is not a UDP address")
)

// maxDatagramSize is the largest payload a single UDP datagram can carry.
const maxDatagramSize = 64 * 1024

// datagramReader is the read side of a packet socket.
type datagramReader interface {
	ReadFrom(p []byte) (n int, addr net.Addr, err error)
}

// UDPChannel implements the Channel interface over plain UDP datagrams.
type UDPChannel struct {
	conn       *net.UDPConn
	advertise  string
	consumerCh chan []byte

	shutdown     bool
	shutdownCh   chan struct{}
	shutdownLock sync.Mutex

	addrLock sync.Mutex
	addrs    map[string]*net.UDPAddr

	logger *logrus.Entry
}

// NewUDPChannel binds a UDP socket to bindAddr. advertise is the address other
// nodes use to reach this one; it defaults to the bound address, which must
// then be routable.
func NewUDPChannel(
	bindAddr string,
	advertise string,
	buffer int,
	logger *logrus.Entry,
) (*UDPChannel, error) {
	ua, err := net.ResolveUDPAddr("udp", bindAddr)
	if err != nil {
		return nil, err
	}

	conn, err := net.ListenUDP("udp", ua)
	if err != nil {
		return nil, err
	}

	if advertise == "" {
		addr, ok := conn.LocalAddr().(*net.UDPAddr)
		if !ok {
			conn.Close()
			return nil, errNotUDP
		}
		if addr.IP == nil || addr.IP.IsUnspecified() {
			conn.Close()
			return nil, errNotAdvertisable
		}
		advertise = addr.String()
	}

	if buffer <= 0 {
		buffer = DefaultInmemBuffer
	}

	if logger == nil {
		log := logrus.New()
		log.Level = logrus.DebugLevel
		logger = logrus.NewEntry(log)
	}

	u := &UDPChannel{
		conn:       conn,
		advertise:  advertise,
		consumerCh: make(chan []byte, buffer),
		shutdownCh: make(chan struct{}),
		addrs:      make(map[string]*net.UDPAddr),
		logger:     logger,
	}

	go u.readLoop(conn)

	return u, nil
}

// Consumer implements the Channel interface.
func (u *UDPChannel) Consumer() <-chan []byte {
	return u.consumerCh
}

// LocalAddr implements the Channel interface.
func (u *UDPChannel) LocalAddr() string {
	return u.advertise
}

// Send implements the Channel interface. It writes a single datagram without
// extra framing.
func (u *UDPChannel) Send(target string, data []byte) error {
	if u.IsShutdown() {
		return ErrChannelShutdown
	}

	ra, err := u.resolve(target)
	if err != nil {
		return err
	}

	_, err = u.conn.WriteToUDP(data, ra)
	return err
}

func (u *UDPChannel) resolve(target string) (*net.UDPAddr, error) {
	u.addrLock.Lock()
	defer u.addrLock.Unlock()

	if ra, ok := u.addrs[target]; ok {
		return ra, nil
	}

	ra, err := net.ResolveUDPAddr("udp", target)
	if err != nil {
		return nil, err
	}
	u.addrs[target] = ra

	return ra, nil
}

//readLoop delivers datagrams until the channel is closed. Read errors on a
//live socket, such as ICMP port unreachable reported back on Linux, are
//logged and skipped.
func (u *UDPChannel) readLoop(r datagramReader) {
	buf := make([]byte, maxDatagramSize)
	for {
		n, _, err := r.ReadFrom(buf)
		if err != nil {
			if u.IsShutdown() {
				return
			}
			if errors.Is(err, net.ErrClosed) {
				u.logger.WithError(err).Error("Socket closed, stopping reads")
				return
			}
			u.logger.WithError(err).Warn("Failed to read datagram")
			continue
		}

		b := make([]byte, n)
		copy(b, buf[:n])

		select {
		case u.consumerCh <- b:
		case <-u.shutdownCh:
			return
		default:
			u.logger.Debug("Inbound queue full, dropping datagram")
		}
	}
}

// IsShutdown is used to check if the channel is shutdown.
func (u *UDPChannel) IsShutdown() bool {
	select {
	case <-u.shutdownCh:
		return true
	default:
		return false
	}
}

// Close is used to stop the channel.
func (u *UDPChannel) Close() error {
	u.shutdownLock.Lock()
	defer u.shutdownLock.Unlock()

	if !u.shutdown {
		close(u.shutdownCh)
		u.shutdown = true
		return u.conn.Close()
	}
	return nil
}
