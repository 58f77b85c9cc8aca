package lsp4

// ERC725Y data keys written by the mint pipeline.
var (
	// MetadataKey is keccak256("LSP4Metadata"), a Singleton key with valueType bytes.
	MetadataKey = Keccak256([]byte("LSP4Metadata"))
)

// Verification methods understood by VerifiableURI and the image descriptors.
const (
	MethodKeccak256UTF8  = "keccak256(utf8)"
	MethodKeccak256Bytes = "keccak256(bytes)"
)

// MethodID returns the 4-byte identifier of a verification method name.
func MethodID(method string) [4]byte {
	var id [4]byte
	h := Keccak256([]byte(method))
	copy(id[:], h[:4])
	return id
}

var methodsByID = map[[4]byte]string{
	MethodID(MethodKeccak256UTF8):  MethodKeccak256UTF8,
	MethodID(MethodKeccak256Bytes): MethodKeccak256Bytes,
}
