package notifier

import (
	"bufio"
	"context"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"connectoralert/internal/config"
)

func TestValidateEmailConfig(t *testing.T) {
	tests := []struct {
		name   string
		config config.EmailConfig
		errMsg string
	}{
		{
			name:   "empty config",
			config: config.EmailConfig{},
			errMsg: "SMTP host is required",
		},
		{
			name:   "missing port",
			config: config.EmailConfig{Host: "smtp.example.com"},
			errMsg: "SMTP port is required",
		},
		{
			name:   "missing from",
			config: config.EmailConfig{Host: "smtp.example.com", Port: 587},
			errMsg: "from address is required",
		},
		{
			name:   "invalid from",
			config: config.EmailConfig{Host: "smtp.example.com", Port: 587, From: "not an address"},
			errMsg: "invalid from address",
		},
		{
			name:   "missing recipients",
			config: config.EmailConfig{Host: "smtp.example.com", Port: 587, From: "alerts@example.com"},
			errMsg: "at least one recipient is required",
		},
		{
			name: "invalid recipient",
			config: config.EmailConfig{
				Host: "smtp.example.com", Port: 587, From: "alerts@example.com",
				Recipients: []string{"ops@example.com", "@@"},
			},
			errMsg: "invalid recipient",
		},
		{
			name: "valid config",
			config: config.EmailConfig{
				Host: "smtp.example.com", Port: 587, From: "Connector Alerts <alerts@example.com>",
				Recipients: []string{"ops@example.com"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEmailConfig(tt.config)
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.errMsg)
		})
	}
}

func TestEmailNotifierName(t *testing.T) {
	n, err := NewEmailNotifier(config.EmailConfig{
		Host: "smtp.example.com", Port: 587, From: "alerts@example.com",
		Recipients: []string{"ops@example.com"},
	})
	require.NoError(t, err)
	assert.Equal(t, "email", n.Name())
	assert.NoError(t, n.Close())
}

func TestBuildMessage(t *testing.T) {
	n, err := NewEmailNotifier(config.EmailConfig{
		Host: "smtp.example.com", Port: 587, From: "alerts@example.com",
		Recipients: []string{"ops@example.com", "oncall@example.com"},
	})
	require.NoError(t, err)
	n.now = func() time.Time { return time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC) }

	msg := string(n.buildMessage("Test Subject", "line one\nline two"))

	assert.Contains(t, msg, "From: alerts@example.com\r\n")
	assert.Contains(t, msg, "To: ops@example.com, oncall@example.com\r\n")
	assert.Contains(t, msg, "Subject: Test Subject\r\n")
	assert.Contains(t, msg, "Date: Mon, 15 Jan 2024 10:30:00 +0000\r\n")
	assert.Contains(t, msg, "Content-Type: text/plain; charset=UTF-8\r\n")
	assert.True(t, strings.HasSuffix(msg, "\r\n\r\nline one\r\nline two"))
}

func TestExtractEmail(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"test@example.com", "test@example.com"},
		{"Test User <test@example.com>", "test@example.com"},
		{"<test@example.com>", "test@example.com"},
		{"garbage", "garbage"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, extractEmail(tt.input), tt.input)
	}
}

// mockSMTPServer accepts plain SMTP sessions and stores each message body.
type mockSMTPServer struct {
	listener   net.Listener
	rejectRcpt bool

	mu       sync.Mutex
	messages []string
	wg       sync.WaitGroup
}

func newMockSMTPServer(t *testing.T, rejectRcpt bool) *mockSMTPServer {
	t.Helper()

	var lc net.ListenConfig
	listener, err := lc.Listen(context.Background(), "tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := &mockSMTPServer{listener: listener, rejectRcpt: rejectRcpt}
	s.wg.Add(1)
	go s.serve()
	t.Cleanup(s.close)

	return s
}

func (s *mockSMTPServer) serve() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		go s.handleConnection(conn)
	}
}

func (s *mockSMTPServer) handleConnection(conn net.Conn) {
	defer conn.Close()

	reader := bufio.NewReader(conn)
	writer := bufio.NewWriter(conn)
	reply := func(line string) {
		writer.WriteString(line + "\r\n")
		writer.Flush()
	}

	reply("220 localhost SMTP Mock Server")

	var dataMode bool
	var data strings.Builder

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimRight(line, "\r\n")

		if dataMode {
			if line == "." {
				dataMode = false
				s.mu.Lock()
				s.messages = append(s.messages, data.String())
				s.mu.Unlock()
				data.Reset()
				reply("250 OK")
				continue
			}
			data.WriteString(line + "\n")
			continue
		}

		upper := strings.ToUpper(line)
		switch {
		case strings.HasPrefix(upper, "EHLO"), strings.HasPrefix(upper, "HELO"):
			reply("250-localhost")
			reply("250 OK")
		case strings.HasPrefix(upper, "MAIL FROM"):
			reply("250 OK")
		case strings.HasPrefix(upper, "RCPT TO"):
			if s.rejectRcpt {
				reply("550 No such user")
				continue
			}
			reply("250 OK")
		case upper == "DATA":
			reply("354 Start mail input")
			dataMode = true
		case upper == "QUIT":
			reply("221 Bye")
			return
		default:
			reply("500 Unknown command")
		}
	}
}

func (s *mockSMTPServer) hostPort(t *testing.T) (string, int) {
	host, port, err := net.SplitHostPort(s.listener.Addr().String())
	require.NoError(t, err)
	p, err := strconv.Atoi(port)
	require.NoError(t, err)
	return host, p
}

func (s *mockSMTPServer) close() {
	s.listener.Close()
	s.wg.Wait()
}

func (s *mockSMTPServer) getMessages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]string, len(s.messages))
	copy(result, s.messages)
	return result
}

func newMockEmailNotifier(t *testing.T, server *mockSMTPServer) *EmailNotifier {
	t.Helper()

	host, port := server.hostPort(t)
	n, err := NewEmailNotifier(config.EmailConfig{
		Host:       host,
		Port:       port,
		From:       "Connector Alerts <alerts@example.com>",
		Recipients: []string{"ops@example.com"},
	})
	require.NoError(t, err)
	return n
}

func TestEmailNotifierSendWithMockSMTP(t *testing.T) {
	server := newMockSMTPServer(t, false)
	n := newMockEmailNotifier(t, server)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, n.Send(ctx, testAlert()))

	messages := server.getMessages()
	require.Len(t, messages, 1)
	assert.Contains(t, messages[0], "Subject: [CRITICAL] pending-packages: 501 pending packages")
	assert.Contains(t, messages[0], "To: ops@example.com")
	assert.Contains(t, messages[0], "501 pending packages in CONNECTOR.PACKAGE exceed the threshold of 500")
}

func TestEmailNotifierRecipientRejected(t *testing.T) {
	server := newMockSMTPServer(t, true)
	n := newMockEmailNotifier(t, server)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := n.Send(ctx, testAlert())
	assert.ErrorContains(t, err, "failed to add recipient")
	assert.Empty(t, server.getMessages())
}

func TestEmailNotifierConnectionRefused(t *testing.T) {
	server := newMockSMTPServer(t, false)
	n := newMockEmailNotifier(t, server)
	server.close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := n.Send(ctx, testAlert())
	assert.ErrorContains(t, err, "failed to connect to SMTP server")
}
