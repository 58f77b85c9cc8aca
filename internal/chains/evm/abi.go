package evm

import (
	"encoding/json"
	"fmt"

	"github.com/hyperledger/firefly-signer/pkg/abi"
)

// CollectionABI is the subset of the LSP8 collection interface the gateway calls.
// It is used when the configured artifact does not supply an ABI.
const CollectionABI = `[
  {"type":"constructor","stateMutability":"nonpayable","inputs":[
    {"name":"name_","type":"string"},
    {"name":"symbol_","type":"string"},
    {"name":"newOwner_","type":"address"}
  ]},
  {"type":"function","name":"mint","stateMutability":"nonpayable","inputs":[
    {"name":"to","type":"address"},
    {"name":"tokenId","type":"bytes32"},
    {"name":"force","type":"bool"},
    {"name":"data","type":"bytes"}
  ],"outputs":[]},
  {"type":"function","name":"setDataForTokenId","stateMutability":"nonpayable","inputs":[
    {"name":"tokenId","type":"bytes32"},
    {"name":"dataKey","type":"bytes32"},
    {"name":"dataValue","type":"bytes"}
  ],"outputs":[]},
  {"type":"function","name":"setData","stateMutability":"payable","inputs":[
    {"name":"dataKey","type":"bytes32"},
    {"name":"dataValue","type":"bytes"}
  ],"outputs":[]},
  {"type":"function","name":"getDataForTokenId","stateMutability":"view","inputs":[
    {"name":"tokenId","type":"bytes32"},
    {"name":"dataKey","type":"bytes32"}
  ],"outputs":[{"name":"dataValue","type":"bytes"}]},
  {"type":"function","name":"getData","stateMutability":"view","inputs":[
    {"name":"dataKey","type":"bytes32"}
  ],"outputs":[{"name":"dataValue","type":"bytes"}]}
]`

// Function names the gateway requires from the collection ABI.
const (
	fnMint              = "mint"
	fnSetDataForTokenID = "setDataForTokenId"
	fnSetData           = "setData"
	fnGetDataForTokenID = "getDataForTokenId"
	fnGetData           = "getData"
)

var requiredFunctions = []string{fnMint, fnSetDataForTokenID, fnSetData, fnGetDataForTokenID, fnGetData}

// collectionABI is a parsed ABI with the entries the gateway needs.
type collectionABI struct {
	constructor *abi.Entry
	functions   map[string]*abi.Entry
}

// parseCollectionABI prefers entries from the artifact ABI and falls back to
// CollectionABI for any required function the artifact does not declare.
func parseCollectionABI(raw json.RawMessage) (*collectionABI, error) {
	var defaults abi.ABI
	if err := json.Unmarshal([]byte(CollectionABI), &defaults); err != nil {
		return nil, fmt.Errorf("parsing default ABI: %w", err)
	}
	a := defaults
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, fmt.Errorf("parsing ABI: %w", err)
		}
	}

	out := &collectionABI{constructor: a.Constructor(), functions: make(map[string]*abi.Entry, len(requiredFunctions))}
	if out.constructor == nil {
		out.constructor = defaults.Constructor()
	}
	fns, fallback := a.Functions(), defaults.Functions()
	for _, name := range requiredFunctions {
		fn, ok := fns[name]
		if !ok {
			fn = fallback[name]
		}
		out.functions[name] = fn
	}
	return out, nil
}
