//go:build linux

/* SPDX-License-Identifier: BSD-2-Clause */

// Package uffdview maps a remote resource into memory and resolves page
// faults against it lazily, using Linux's userfaultfd mechanism: reading
// the mapped region for the first time triggers a Range fetch for exactly
// the faulting page instead of the whole resource.
package uffdview

import (
	"errors"
	"io"
	"log"
	"unsafe"

	rangestream "github.com/go-range/rangestream"
	uffd "github.com/ricardobranco777/go-userfaultfd"
	"golang.org/x/sys/unix"
)

// View maps a RandomAccessFile into memory, resolving page faults on
// demand against it via userfaultfd. It is the page-fault-driven sibling
// of RandomAccessFile's own ReadAt-based access: instead of the caller
// deciding when and how much to read, the MMU's own fault handler decides,
// one page at a time.
type View struct {
	file     *rangestream.RandomAccessFile
	handle   *uffd.Uffd
	addr     []byte
	pageSize int
	done     chan struct{}
}

var _ io.Closer = (*View)(nil)

// New maps file's full extent into memory and starts the background fault
// handler. file's total length must already be known (e.g. file was opened
// with rangestream.Open, which probes length at construction).
func New(file *rangestream.RandomAccessFile) (*View, error) {
	pageSize := unix.Getpagesize()

	size, err := file.Size()
	if err != nil {
		return nil, err
	}
	if size <= 0 {
		return nil, errors.New("uffdview: non-positive resource size")
	}

	length := (int(size) + pageSize - 1) &^ (pageSize - 1)

	addr, err := unix.Mmap(-1, 0, length, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, err
	}

	u, err := uffd.New(uffd.UFFD_USER_MODE_ONLY, 0)
	if err != nil {
		unix.Munmap(addr)
		return nil, err
	}

	v := &View{
		file:     file,
		handle:   u,
		addr:     addr,
		pageSize: pageSize,
		done:     make(chan struct{}),
	}

	if _, err := u.Register(uintptr(unsafe.Pointer(&addr[0])), uintptr(length), uffd.UFFDIO_REGISTER_MODE_MISSING); err != nil {
		u.Close()
		unix.Munmap(addr)
		return nil, err
	}

	go v.faultLoop()
	return v, nil
}

// faultLoop resolves each page fault by reading exactly one page's worth
// of bytes from the backing RangeStream via file.ReadAt, then copying the
// result into the faulting page.
func (v *View) faultLoop() {
	base := uintptr(unsafe.Pointer(&v.addr[0]))

	for {
		msg, err := v.handle.ReadMsg()
		if err != nil {
			select {
			case <-v.done:
				return
			default:
				log.Printf("uffdview: read event error: %v", err)
				continue
			}
		}

		switch msg.Event {
		case uffd.UFFD_EVENT_PAGEFAULT:
			fault := (*uffd.UffdMsgPagefault)(unsafe.Pointer(&msg.Data))
			addr := uintptr(fault.Address)
			offset := int64(addr - base)
			pageOffset := offset &^ int64(v.pageSize-1)

			buf := make([]byte, v.pageSize)
			n := int64(v.pageSize)
			if size, err := v.file.Size(); err == nil && pageOffset+n > size {
				n = size - pageOffset
			}
			if _, err := v.file.ReadAt(buf[:n], pageOffset); err != nil && !errors.Is(err, io.EOF) {
				log.Printf("uffdview: fault read at %d failed: %v", pageOffset, err)
			}

			pageAddr := addr &^ uintptr(v.pageSize-1)
			if _, err := v.handle.Copy(pageAddr, uintptr(unsafe.Pointer(&buf[0])), uintptr(v.pageSize), 0); err != nil {
				log.Printf("uffdview: copy into page %d failed: %v", pageAddr, err)
			}

		default:
			log.Printf("uffdview: unexpected event %v", msg.Event)
		}
	}
}

// Bytes returns the mapped region. Touching any byte in it lazily triggers
// a Range fetch of its containing page.
func (v *View) Bytes() []byte { return v.addr }

// Close unregisters the fault handler and unmaps the view's memory.
func (v *View) Close() error {
	close(v.done)
	v.handle.Close()
	return unix.Munmap(v.addr)
}
