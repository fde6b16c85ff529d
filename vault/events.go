// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vault

import (
	"math/big"

	"github.com/luxfi/geth/common"
	ethtypes "github.com/luxfi/geth/core/types"
	"github.com/zeebo/blake3"
)

// Event topic signatures, hashed from the canonical event declarations.
var (
	TopicTokensRegistered       = eventTopic("TokensRegistered(bytes32,address[],address[])")
	TopicTokensDeregistered     = eventTopic("TokensDeregistered(bytes32,address[])")
	TopicPoolRegistered         = eventTopic("PoolRegistered(bytes32,address,uint8)")
	TopicSwap                   = eventTopic("Swap(bytes32,address,address,uint256,uint256)")
	TopicPoolBalanceChanged     = eventTopic("PoolBalanceChanged(bytes32,address,address,int256,int256)")
	TopicPoolBalanceManaged     = eventTopic("PoolBalanceManaged(bytes32,address,address,int256,int256)")
	TopicInternalBalanceChanged = eventTopic("InternalBalanceChanged(address,address,int256)")
	TopicRelayerApprovalChanged = eventTopic("RelayerApprovalChanged(address,address,bool)")
	TopicPausedStateChanged     = eventTopic("PausedStateChanged(bool)")
)

func eventTopic(signature string) common.Hash {
	h := blake3.New()
	h.Write([]byte(signature))
	var topic common.Hash
	h.Digest().Read(topic[:])
	return topic
}

func emitLog(state StateDB, topics []common.Hash, data []byte) {
	state.AddLog(&ethtypes.Log{
		Address:     VaultAddress,
		Topics:      topics,
		Data:        data,
		BlockNumber: state.GetBlockNumber(),
	})
}

// Event data is packed as a flat sequence of 32-byte words. Signed values
// use two's complement in a full word.

func wordBig(v *big.Int) common.Hash {
	var w common.Hash
	if v.Sign() >= 0 {
		v.FillBytes(w[:])
		return w
	}
	// two's complement
	mod := new(big.Int).Lsh(big.NewInt(1), 256)
	comp := new(big.Int).Add(mod, v)
	comp.FillBytes(w[:])
	return w
}

func packWords(words ...common.Hash) []byte {
	data := make([]byte, 0, 32*len(words))
	for _, w := range words {
		data = append(data, w[:]...)
	}
	return data
}

func emitPoolRegistered(state StateDB, poolID PoolID, pool common.Address, spec Specialization) {
	emitLog(state,
		[]common.Hash{TopicPoolRegistered, common.Hash(poolID)},
		packWords(addressWord(pool), u64Word(uint64(spec))))
}

func emitTokensRegistered(state StateDB, poolID PoolID, tokens []Currency, managers []common.Address) {
	words := make([]common.Hash, 0, len(tokens)*2)
	for _, t := range tokens {
		words = append(words, addressWord(t.Address))
	}
	for _, m := range managers {
		words = append(words, addressWord(m))
	}
	emitLog(state, []common.Hash{TopicTokensRegistered, common.Hash(poolID)}, packWords(words...))
}

func emitTokensDeregistered(state StateDB, poolID PoolID, tokens []Currency) {
	words := make([]common.Hash, 0, len(tokens))
	for _, t := range tokens {
		words = append(words, addressWord(t.Address))
	}
	emitLog(state, []common.Hash{TopicTokensDeregistered, common.Hash(poolID)}, packWords(words...))
}

func emitSwap(state StateDB, poolID PoolID, tokenIn, tokenOut Currency, amountIn, amountOut *big.Int) {
	emitLog(state,
		[]common.Hash{TopicSwap, common.Hash(poolID)},
		packWords(addressWord(tokenIn.Address), addressWord(tokenOut.Address),
			wordBig(amountIn), wordBig(amountOut)))
}

func emitPoolBalanceChanged(state StateDB, poolID PoolID, sender common.Address, token Currency, cashDelta, managedDelta *big.Int) {
	emitLog(state,
		[]common.Hash{TopicPoolBalanceChanged, common.Hash(poolID)},
		packWords(addressWord(sender), addressWord(token.Address),
			wordBig(cashDelta), wordBig(managedDelta)))
}

func emitPoolBalanceManaged(state StateDB, poolID PoolID, manager common.Address, token Currency, cashDelta, managedDelta *big.Int) {
	emitLog(state,
		[]common.Hash{TopicPoolBalanceManaged, common.Hash(poolID)},
		packWords(addressWord(manager), addressWord(token.Address),
			wordBig(cashDelta), wordBig(managedDelta)))
}

func emitInternalBalanceChanged(state StateDB, account common.Address, token Currency, delta *big.Int) {
	emitLog(state,
		[]common.Hash{TopicInternalBalanceChanged, addressWord(account)},
		packWords(addressWord(token.Address), wordBig(delta)))
}

func emitRelayerApprovalChanged(state StateDB, sender, relayer common.Address, approved bool) {
	flag := u64Word(0)
	if approved {
		flag = u64Word(1)
	}
	emitLog(state,
		[]common.Hash{TopicRelayerApprovalChanged, addressWord(sender)},
		packWords(addressWord(relayer), flag))
}

func emitPausedStateChanged(state StateDB, paused bool) {
	flag := u64Word(0)
	if paused {
		flag = u64Word(1)
	}
	emitLog(state, []common.Hash{TopicPausedStateChanged}, packWords(flag))
}
