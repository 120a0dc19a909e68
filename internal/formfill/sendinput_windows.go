//go:build windows

package formfill

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf16"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32        = windows.NewLazySystemDLL("user32.dll")
	procSendInput = user32.NewProc("SendInput")
)

const (
	inputKeyboard   = 1
	keyeventKeyUp   = 0x0002
	keyeventUnicode = 0x0004

	vkTab    = 0x09
	vkReturn = 0x0D
)

var virtualKeys = map[string]uint16{
	KeyTab:   vkTab,
	KeyEnter: vkReturn,
}

// keybdInput mirrors KEYBDINPUT.
type keybdInput struct {
	vk    uint16
	scan  uint16
	flags uint32
	time  uint32
	extra uintptr
}

// input mirrors INPUT for the keyboard variant. The padding matches the size of
// the MOUSEINPUT member of the union.
type input struct {
	typ uint32
	ki  keybdInput
	_   [8]byte
}

type sendInput struct {
	opts Options
}

func newSendInput(o Options) (Injector, error) {
	if err := procSendInput.Find(); err != nil {
		return nil, fmt.Errorf("sendinput: %w", err)
	}
	return &sendInput{opts: o}, nil
}

func (s *sendInput) send(in []input) error {
	if len(in) == 0 {
		return nil
	}
	n, _, err := procSendInput.Call(uintptr(len(in)), uintptr(unsafe.Pointer(&in[0])), unsafe.Sizeof(in[0]))
	if int(n) != len(in) {
		return fmt.Errorf("sendinput: %d of %d events accepted: %w", n, len(in), err)
	}
	return nil
}

func (s *sendInput) pause(ctx context.Context) error {
	if s.opts.TypeDelay <= 0 {
		return ctx.Err()
	}
	return Sleep(ctx, s.opts.TypeDelay)
}

func (s *sendInput) PressKey(ctx context.Context, key string, n int) error {
	vk, ok := virtualKeys[strings.ToLower(key)]
	if !ok {
		return fmt.Errorf("sendinput: unsupported key %q", key)
	}
	for i := 0; i < n; i++ {
		err := s.send([]input{
			{typ: inputKeyboard, ki: keybdInput{vk: vk}},
			{typ: inputKeyboard, ki: keybdInput{vk: vk, flags: keyeventKeyUp}},
		})
		if err != nil {
			return err
		}
		if err := s.pause(ctx); err != nil {
			return err
		}
	}
	return nil
}

// TypeText sends each UTF-16 unit as a unicode key event, so layout and IME do not matter.
func (s *sendInput) TypeText(ctx context.Context, text string) error {
	for _, r := range text {
		units := utf16.Encode([]rune{r})
		events := make([]input, 0, 2*len(units))
		for _, u := range units {
			events = append(events,
				input{typ: inputKeyboard, ki: keybdInput{scan: u, flags: keyeventUnicode}},
				input{typ: inputKeyboard, ki: keybdInput{scan: u, flags: keyeventUnicode | keyeventKeyUp}},
			)
		}
		if err := s.send(events); err != nil {
			return err
		}
		if err := s.pause(ctx); err != nil {
			return err
		}
	}
	return nil
}

