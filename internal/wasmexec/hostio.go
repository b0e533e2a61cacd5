package wasmexec

import (
	"bytes"
	"encoding/binary"
	"net"
	"os"
	"strconv"
	"sync"
	"time"
)

// IOHooks let an embedder intercept file and socket operations; nil
// fields fall through to os / net.
type IOHooks struct {
	Open  func(path string, mode string) (*os.File, error)
	Write func(fd int32, data []byte) (int, error)
	Read  func(fd int32, n uint32) ([]byte, error)
}

// UserImportFn handles an import from a user-declared module.
type UserImportFn func(name string, args []uint64) ([]uint64, error)

// HostIO owns the file-handle and socket-handle tables, stdout/stderr
// capture buffers, and user-module import handlers.
type HostIO struct {
	mu sync.Mutex

	files   map[int32]*os.File
	sockets map[int32]net.Conn
	nextFD  int32

	hooks IOHooks

	captureOut bool
	captureErr bool
	stdout     bytes.Buffer
	stderr     bytes.Buffer

	userModules map[string]UserImportFn
}

// NewHostIO returns a delegate with stdio pre-registered (fds 0-2) and
// capture off.
func NewHostIO() *HostIO {
	return &HostIO{
		files:       map[int32]*os.File{0: os.Stdin, 1: os.Stdout, 2: os.Stderr},
		sockets:     make(map[int32]net.Conn),
		nextFD:      3,
		userModules: make(map[string]UserImportFn),
	}
}

// SetHooks installs user-supplied IO hooks.
func (h *HostIO) SetHooks(hooks IOHooks) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hooks = hooks
}

// CaptureStdio toggles capturing of fds 1 and 2 into host buffers
// instead of the process streams.
func (h *HostIO) CaptureStdio(out, errStream bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.captureOut, h.captureErr = out, errStream
}

// Stdout returns the captured stdout bytes.
func (h *HostIO) Stdout() []byte { return h.stdout.Bytes() }

// Stderr returns the captured stderr bytes.
func (h *HostIO) Stderr() []byte { return h.stderr.Bytes() }

// RegisterUserModule installs an import handler for a user-declared
// module name.
func (h *HostIO) RegisterUserModule(module string, fn UserImportFn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.userModules[module] = fn
}

// HasUserModule reports whether module has a registered handler.
func (h *HostIO) HasUserModule(module string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.userModules[module]
	return ok
}

// CallUserImport dispatches an import from a user-declared module.
func (h *HostIO) CallUserImport(module, name string, args []uint64) ([]uint64, error) {
	h.mu.Lock()
	fn := h.userModules[module]
	h.mu.Unlock()
	if fn == nil {
		return nil, &ExecutionError{Message: "unresolved import " + module + "." + name}
	}
	return fn(name, args)
}

// write sends data to fd, honoring capture flags and hooks.
func (h *HostIO) write(fd int32, data []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if fd == 1 && h.captureOut {
		return h.stdout.Write(data)
	}
	if fd == 2 && h.captureErr {
		return h.stderr.Write(data)
	}
	if h.hooks.Write != nil {
		return h.hooks.Write(fd, data)
	}
	if f, ok := h.files[fd]; ok {
		return f.Write(data)
	}
	if c, ok := h.sockets[fd]; ok {
		return c.Write(data)
	}
	return 0, &ExecutionError{Message: "write to unknown fd"}
}

func (h *HostIO) read(fd int32, n uint32) ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.hooks.Read != nil {
		return h.hooks.Read(fd, n)
	}
	buf := make([]byte, n)
	if f, ok := h.files[fd]; ok {
		m, err := f.Read(buf)
		return buf[:m], err
	}
	if c, ok := h.sockets[fd]; ok {
		m, err := c.Read(buf)
		return buf[:m], err
	}
	return nil, &ExecutionError{Message: "read from unknown fd"}
}

func (h *HostIO) open(path, mode string) (int32, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var f *os.File
	var err error
	if h.hooks.Open != nil {
		f, err = h.hooks.Open(path, mode)
	} else {
		switch mode {
		case "r", "rb":
			f, err = os.Open(path)
		case "w", "wb":
			f, err = os.Create(path)
		case "a", "ab":
			f, err = os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		default:
			f, err = os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
		}
	}
	if err != nil {
		return -1, nil // C fopen contract: NULL on failure
	}
	fd := h.nextFD
	h.nextFD++
	h.files[fd] = f
	return fd, nil
}

func (h *HostIO) close(fd int32) int32 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if f, ok := h.files[fd]; ok {
		delete(h.files, fd)
		if f.Close() != nil {
			return -1
		}
		return 0
	}
	if c, ok := h.sockets[fd]; ok {
		delete(h.sockets, fd)
		if c.Close() != nil {
			return -1
		}
		return 0
	}
	return -1
}

// hostIOCall handles the libc-shaped IO imports (fopen, fread, fwrite,
// write, read, clock_gettime, nanosleep, socket family, ...). Returns
// handled=false for names outside this group.
func (x *Executor) hostIOCall(name string, args []uint64) ([]uint64, bool, error) {
	arg := func(i int) uint32 {
		if i < len(args) {
			return uint32(args[i])
		}
		return 0
	}

	switch name {
	case "write", "fwrite":
		var fd int32
		var ptr, n uint32
		if name == "write" {
			fd, ptr, n = int32(arg(0)), arg(1), arg(2)
		} else {
			// fwrite(ptr, size, nmemb, stream)
			ptr, n, fd = arg(0), arg(1)*arg(2), int32(arg(3))
		}
		data, err := x.ReadBytes(ptr, n)
		if err != nil {
			return nil, true, err
		}
		m, _ := x.hostIO.write(fd, data)
		return []uint64{uint64(uint32(m))}, true, nil

	case "read", "fread":
		var fd int32
		var ptr, n uint32
		if name == "read" {
			fd, ptr, n = int32(arg(0)), arg(1), arg(2)
		} else {
			ptr, n, fd = arg(0), arg(1)*arg(2), int32(arg(3))
		}
		data, err := x.hostIO.read(fd, n)
		if err != nil {
			return []uint64{0}, true, nil
		}
		if err := x.StoreBytes(ptr, data); err != nil {
			return nil, true, err
		}
		return []uint64{uint64(uint32(len(data)))}, true, nil

	case "fopen":
		path, err := x.readCString(arg(0))
		if err != nil {
			return nil, true, err
		}
		mode, err := x.readCString(arg(1))
		if err != nil {
			return nil, true, err
		}
		fd, _ := x.hostIO.open(path, mode)
		if fd < 0 {
			return []uint64{0}, true, nil
		}
		return []uint64{uint64(uint32(fd))}, true, nil

	case "fclose", "close", "shutdown":
		return []uint64{uint64(uint32(x.hostIO.close(int32(arg(0)))))}, true, nil

	case "fflush":
		return []uint64{0}, true, nil

	case "fileno":
		return []uint64{args[0]}, true, nil

	case "ftell":
		x.hostIO.mu.Lock()
		f, ok := x.hostIO.files[int32(arg(0))]
		x.hostIO.mu.Unlock()
		if !ok {
			return []uint64{uint64(^uint32(0))}, true, nil
		}
		pos, err := f.Seek(0, 1)
		if err != nil {
			return []uint64{uint64(^uint32(0))}, true, nil
		}
		return []uint64{uint64(uint32(pos))}, true, nil

	case "ftruncate":
		x.hostIO.mu.Lock()
		f, ok := x.hostIO.files[int32(arg(0))]
		x.hostIO.mu.Unlock()
		if ok && f.Truncate(int64(arg(1))) == nil {
			return []uint64{0}, true, nil
		}
		return []uint64{uint64(^uint32(0))}, true, nil

	case "isatty":
		return []uint64{0}, true, nil

	case "clock_gettime":
		now := time.Now()
		if err := x.StoreU64(arg(1), uint64(now.Unix())); err != nil {
			return nil, true, err
		}
		if err := x.StoreU32(arg(1)+8, uint32(now.Nanosecond())); err != nil {
			return nil, true, err
		}
		return []uint64{0}, true, nil

	case "nanosleep":
		sec, err := x.ReadU64(arg(0))
		if err != nil {
			return nil, true, err
		}
		nsec, err := x.ReadU32(arg(0) + 8)
		if err != nil {
			return nil, true, err
		}
		time.Sleep(time.Duration(sec)*time.Second + time.Duration(nsec)*time.Nanosecond)
		return []uint64{0}, true, nil

	case "htons":
		v := uint16(arg(0))
		return []uint64{uint64(v<<8 | v>>8)}, true, nil

	case "inet_pton":
		addr, err := x.readCString(arg(1))
		if err != nil {
			return nil, true, err
		}
		ip := net.ParseIP(addr)
		if ip == nil {
			return []uint64{0}, true, nil
		}
		if v4 := ip.To4(); v4 != nil {
			if err := x.StoreU32(arg(2), binary.BigEndian.Uint32(v4)); err != nil {
				return nil, true, err
			}
			return []uint64{1}, true, nil
		}
		return []uint64{0}, true, nil

	case "socket":
		// The handle is allocated lazily: connect attaches the net.Conn.
		x.hostIO.mu.Lock()
		fd := x.hostIO.nextFD
		x.hostIO.nextFD++
		x.hostIO.mu.Unlock()
		return []uint64{uint64(uint32(fd))}, true, nil

	case "connect":
		// sockaddr_in: family(2) port(2,BE) addr(4,BE)
		sa, err := x.ReadBytes(arg(1), 8)
		if err != nil {
			return nil, true, err
		}
		port := uint16(sa[2])<<8 | uint16(sa[3])
		ip := net.IPv4(sa[4], sa[5], sa[6], sa[7])
		conn, err := net.DialTimeout("tcp", ip.String()+":"+strconv.Itoa(int(port)), 5*time.Second)
		if err != nil {
			return []uint64{uint64(^uint32(0))}, true, nil
		}
		x.hostIO.mu.Lock()
		x.hostIO.sockets[int32(arg(0))] = conn
		x.hostIO.mu.Unlock()
		return []uint64{0}, true, nil

	case "send":
		data, err := x.ReadBytes(arg(1), arg(2))
		if err != nil {
			return nil, true, err
		}
		m, _ := x.hostIO.write(int32(arg(0)), data)
		return []uint64{uint64(uint32(m))}, true, nil

	case "recv":
		data, err := x.hostIO.read(int32(arg(0)), arg(2))
		if err != nil {
			return []uint64{uint64(^uint32(0))}, true, nil
		}
		if err := x.StoreBytes(arg(1), data); err != nil {
			return nil, true, err
		}
		return []uint64{uint64(uint32(len(data)))}, true, nil

	default:
		return nil, false, nil
	}
}
