package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/Luganodes/Solana-Indexer/internal/core/domain"
)

// StakeProgramID is the native stake program owning all delegation accounts.
const StakeProgramID = "Stake11111111111111111111111111111111111111"

// voterOffset is the byte offset of the voter pubkey inside a stake
// account's data, used to filter getProgramAccounts by validator.
const voterOffset = 124

// ErrBlockTimeNotFound is returned when the ledger has no block time for a slot.
var ErrBlockTimeNotFound = errors.New("block time not found")

// InflationReward is one entry of a getInflationReward response. The
// ledger returns null for identities without a reward at the epoch; those
// surface as nil entries.
type InflationReward struct {
	Amount        int64  `json:"amount"` // lamports
	PostBalance   int64  `json:"postBalance"`
	Epoch         uint64 `json:"epoch"`
	EffectiveSlot uint64 `json:"effectiveSlot"`
}

// SignatureInfo is one entry of a getSignaturesForAddress response.
type SignatureInfo struct {
	Signature string `json:"signature"`
}

// TransactionDetail is the subset of getTransaction needed for discovery.
type TransactionDetail struct {
	BlockTime int64 `json:"blockTime"` // unix seconds
	Meta      struct {
		Fee int64 `json:"fee"` // lamports
	} `json:"meta"`
	Transaction struct {
		Message struct {
			AccountKeys []string `json:"accountKeys"`
		} `json:"message"`
	} `json:"transaction"`
}

// GetEpochInfo returns the ledger's current epoch.
func (c *Client) GetEpochInfo(ctx context.Context) (uint64, error) {
	raw, err := c.Call(ctx, "getEpochInfo", nil)
	if err != nil {
		return 0, err
	}
	var info struct {
		Epoch uint64 `json:"epoch"`
	}
	if err := json.Unmarshal(raw, &info); err != nil {
		return 0, fmt.Errorf("decode epoch info: %w", err)
	}
	return info.Epoch, nil
}

// GetProgramAccounts returns the pubkeys of all stake accounts delegated
// to the given validator.
func (c *Client) GetProgramAccounts(ctx context.Context, validatorID string) ([]string, error) {
	params := []any{
		StakeProgramID,
		map[string]any{
			"commitment": "confirmed",
			"encoding":   "base64",
			"dataSize":   200,
			"filters": []any{
				map[string]any{
					"memcmp": map[string]any{
						"offset": voterOffset,
						"bytes":  validatorID,
					},
				},
			},
		},
	}
	raw, err := c.Call(ctx, "getProgramAccounts", params)
	if err != nil {
		return nil, err
	}

	var accounts []struct {
		Pubkey string `json:"pubkey"`
	}
	if err := json.Unmarshal(raw, &accounts); err != nil {
		return nil, fmt.Errorf("decode program accounts: %w", err)
	}

	pubkeys := make([]string, 0, len(accounts))
	for _, a := range accounts {
		pubkeys = append(pubkeys, a.Pubkey)
	}
	return pubkeys, nil
}

// GetStakeDelegation returns the parsed delegation of a stake account, or
// nil when the account no longer exists.
func (c *Client) GetStakeDelegation(ctx context.Context, pubkey string) (*domain.StakeDelegation, error) {
	raw, err := c.Call(ctx, "getAccountInfo", []any{pubkey, map[string]any{"encoding": "jsonParsed"}})
	if err != nil {
		return nil, err
	}

	var resp struct {
		Value *struct {
			Data struct {
				Parsed struct {
					Info struct {
						Stake struct {
							Delegation struct {
								ActivationEpoch   string `json:"activationEpoch"`
								DeactivationEpoch string `json:"deactivationEpoch"`
								Stake             string `json:"stake"`
							} `json:"delegation"`
						} `json:"stake"`
					} `json:"info"`
				} `json:"parsed"`
			} `json:"data"`
		} `json:"value"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode account info [%s]: %w", pubkey, err)
	}
	if resp.Value == nil {
		return nil, nil
	}

	delegation := resp.Value.Data.Parsed.Info.Stake.Delegation
	activation, err := parseEpoch(delegation.ActivationEpoch)
	if err != nil {
		return nil, fmt.Errorf("parse activation epoch [%s]: %w", pubkey, err)
	}
	deactivation, err := parseEpoch(delegation.DeactivationEpoch)
	if err != nil {
		return nil, fmt.Errorf("parse deactivation epoch [%s]: %w", pubkey, err)
	}
	stake, err := strconv.ParseInt(delegation.Stake, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse stake [%s]: %w", pubkey, err)
	}

	return &domain.StakeDelegation{
		Pubkey:            pubkey,
		ActivationEpoch:   activation,
		DeactivationEpoch: deactivation,
		Stake:             stake,
	}, nil
}

// ActiveDelegations resolves the validator's current delegation set: the
// stake accounts delegated to it, each with its activation window and
// stake amount. Accounts that vanished between the two calls are skipped.
func (c *Client) ActiveDelegations(ctx context.Context, validatorID string) ([]domain.StakeDelegation, error) {
	pubkeys, err := c.GetProgramAccounts(ctx, validatorID)
	if err != nil {
		return nil, err
	}

	delegations := make([]domain.StakeDelegation, 0, len(pubkeys))
	for _, pubkey := range pubkeys {
		delegation, err := c.GetStakeDelegation(ctx, pubkey)
		if err != nil {
			return nil, err
		}
		if delegation == nil {
			continue
		}
		delegations = append(delegations, *delegation)
	}
	return delegations, nil
}

// GetInflationRewards fetches per-identity inflation rewards for an epoch.
// The result is positional: entry i belongs to pubkeys[i], nil when the
// identity earned nothing that epoch.
func (c *Client) GetInflationRewards(ctx context.Context, pubkeys []string, epoch uint64) ([]*InflationReward, error) {
	raw, err := c.Call(ctx, "getInflationReward", []any{pubkeys, map[string]any{"epoch": epoch}})
	if err != nil {
		return nil, err
	}
	var rewards []*InflationReward
	if err := json.Unmarshal(raw, &rewards); err != nil {
		return nil, fmt.Errorf("decode inflation rewards: %w", err)
	}
	return rewards, nil
}

// GetBlockTime returns the estimated production time of a slot in unix
// seconds.
func (c *Client) GetBlockTime(ctx context.Context, slot uint64) (int64, error) {
	raw, err := c.Call(ctx, "getBlockTime", []any{slot})
	if err != nil {
		return 0, err
	}
	var blockTime *int64
	if err := json.Unmarshal(raw, &blockTime); err != nil {
		return 0, fmt.Errorf("decode block time: %w", err)
	}
	if blockTime == nil {
		return 0, ErrBlockTimeNotFound
	}
	return *blockTime, nil
}

// GetSignaturesForAddress lists transaction signatures involving an address.
func (c *Client) GetSignaturesForAddress(ctx context.Context, address string) ([]SignatureInfo, error) {
	raw, err := c.Call(ctx, "getSignaturesForAddress", []any{address})
	if err != nil {
		return nil, err
	}
	var signatures []SignatureInfo
	if err := json.Unmarshal(raw, &signatures); err != nil {
		return nil, fmt.Errorf("decode signatures: %w", err)
	}
	return signatures, nil
}

// GetTransaction fetches transaction detail by signature, nil when the
// ledger no longer has it.
func (c *Client) GetTransaction(ctx context.Context, signature string) (*TransactionDetail, error) {
	raw, err := c.Call(ctx, "getTransaction", []any{signature, "json"})
	if err != nil {
		return nil, err
	}
	var detail *TransactionDetail
	if err := json.Unmarshal(raw, &detail); err != nil {
		return nil, fmt.Errorf("decode transaction [%s]: %w", signature, err)
	}
	return detail, nil
}

// parseEpoch parses a stringified epoch. Active delegations report a
// deactivation epoch of u64 max; it is clamped to MaxInt64 so the value
// survives a signed bigint column, which no real epoch ever reaches.
func parseEpoch(s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, err
	}
	if v > math.MaxInt64 {
		v = math.MaxInt64
	}
	return v, nil
}
