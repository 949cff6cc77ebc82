package ingest

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ParseAddresses turns configured hex contract addresses into common.Address
// values. Blank entries are skipped so comma-joined env values with trailing
// separators stay valid.
func ParseAddresses(inputs []string) ([]common.Address, error) {
	out := make([]common.Address, 0, len(inputs))
	for i, raw := range inputs {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			continue
		}
		if !common.IsHexAddress(trimmed) {
			return nil, fmt.Errorf("contract address %d (%q) is not a hex address", i, trimmed)
		}
		out = append(out, common.HexToAddress(trimmed))
	}
	return out, nil
}

// ParseTopic0 turns configured topic0 filter values into common.Hash values.
// Each entry must be exactly 32 bytes of hex; common.HexToHash would silently
// pad or truncate, so decode and check the length explicitly.
func ParseTopic0(inputs []string) ([]common.Hash, error) {
	out := make([]common.Hash, 0, len(inputs))
	for i, raw := range inputs {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			continue
		}
		decoded, err := hexutil.Decode(trimmed)
		if err != nil {
			return nil, fmt.Errorf("topic0 %d (%q): %w", i, trimmed, err)
		}
		if len(decoded) != common.HashLength {
			return nil, fmt.Errorf("topic0 %d (%q): got %d bytes, want %d", i, trimmed, len(decoded), common.HashLength)
		}
		out = append(out, common.BytesToHash(decoded))
	}
	return out, nil
}
