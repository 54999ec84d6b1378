package pool

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const poolViewABIJSON = `[
  {
    "inputs": [],
    "name": "token0",
    "outputs": [{"internalType": "address", "name": "", "type": "address"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [],
    "name": "token1",
    "outputs": [{"internalType": "address", "name": "", "type": "address"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [],
    "name": "fee",
    "outputs": [{"internalType": "uint24", "name": "", "type": "uint24"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [],
    "name": "tickSpacing",
    "outputs": [{"internalType": "int24", "name": "", "type": "int24"}],
    "stateMutability": "view",
    "type": "function"
  }
]`

const erc20ViewABIJSON = `[
  {
    "inputs": [],
    "name": "symbol",
    "outputs": [{"internalType": "string", "name": "", "type": "string"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [],
    "name": "name",
    "outputs": [{"internalType": "string", "name": "", "type": "string"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [],
    "name": "decimals",
    "outputs": [{"internalType": "uint8", "name": "", "type": "uint8"}],
    "stateMutability": "view",
    "type": "function"
  }
]`

const erc20Bytes32ABIJSON = `[
  {
    "inputs": [],
    "name": "symbol",
    "outputs": [{"internalType": "bytes32", "name": "", "type": "bytes32"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [],
    "name": "name",
    "outputs": [{"internalType": "bytes32", "name": "", "type": "bytes32"}],
    "stateMutability": "view",
    "type": "function"
  }
]`

var (
	poolViewOnce sync.Once
	poolViewABI  abi.ABI
	poolViewErr  error

	erc20Once       sync.Once
	erc20ABI        abi.ABI
	erc20Bytes32ABI abi.ABI
	erc20Err        error
)

func viewABI() (abi.ABI, error) {
	poolViewOnce.Do(func() {
		poolViewABI, poolViewErr = abi.JSON(strings.NewReader(poolViewABIJSON))
	})
	return poolViewABI, poolViewErr
}

func erc20ABIs() (abi.ABI, abi.ABI, error) {
	erc20Once.Do(func() {
		erc20ABI, erc20Err = abi.JSON(strings.NewReader(erc20ViewABIJSON))
		if erc20Err != nil {
			return
		}
		erc20Bytes32ABI, erc20Err = abi.JSON(strings.NewReader(erc20Bytes32ABIJSON))
	})
	return erc20ABI, erc20Bytes32ABI, erc20Err
}
