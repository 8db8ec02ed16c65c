package vm

import (
	"bytes"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

func TestProgram_PushEncoding(t *testing.T) {
	tests := []struct {
		name string
		prog *Program
		want []byte
	}{
		{"zero", NewProgram().Push(0), []byte{byte(PUSH0)}},
		{"one byte", NewProgram().Push(0x20), []byte{byte(PUSH1), 0x20}},
		{"two bytes", NewProgram().Push(0x1234), []byte{byte(PUSH2), 0x12, 0x34}},
		{"big", NewProgram().PushBig(uint256.NewInt(1 << 40)), []byte{byte(PUSH6), 1, 0, 0, 0, 0, 0}},
		{"address", NewProgram().PushAddr(common.Address{19: 1}), append([]byte{byte(PUSH20)}, common.Address{19: 1}.Bytes()...)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.prog.Bytes(); !bytes.Equal(got, tc.want) {
				t.Errorf("Bytes() = %x, want %x", got, tc.want)
			}
		})
	}
}

func TestProgram_Labels(t *testing.T) {
	code := NewProgram().Jump("end").Op(INVALID).Label("end").Op(STOP).Bytes()
	want := []byte{byte(PUSH2), 0x00, 0x05, byte(JUMP), byte(INVALID), byte(JUMPDEST), byte(STOP)}
	if !bytes.Equal(code, want) {
		t.Fatalf("Bytes() = %x, want %x", code, want)
	}
}

func TestProgram_UndefinedLabelPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for undefined label")
		}
	}()
	NewProgram().Jump("nowhere").Bytes()
}

func TestProgram_CallOperandOrder(t *testing.T) {
	code := NewProgram().Call(100, common.Address{19: 9}, uint256.NewInt(5), 1, 2, 3, 4).Bytes()
	want := NewProgram().Push(4).Push(3).Push(2).Push(1).Push(5).PushAddr(common.Address{19: 9}).Push(100).Op(CALL).Bytes()
	if !bytes.Equal(code, want) {
		t.Fatalf("Call() = %x, want %x", code, want)
	}
}
