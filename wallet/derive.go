package wallet

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/nacl/box"

	"github.com/mfactory-lab/ic-solana/rpc"
)

// derivationPath maps a caller identity to its key derivation path: the raw
// principal bytes. Distinct principals therefore derive distinct keypairs.
// The anonymous principal has no wallet.
func derivationPath(principal rpc.Principal) ([]byte, error) {
	if principal.IsAnonymous() {
		return nil, fmt.Errorf("the anonymous principal has no wallet")
	}
	return []byte(principal), nil
}

// derivation walks the key obtainment sequence one step at a time. Each
// state transition is explicit so a failure identifies the step it died in.
type derivation struct {
	keys KeyService
	path []byte

	transportPub  *[32]byte
	transportPriv *[32]byte
	sealed        []byte
	key           ed25519.PrivateKey
}

// run drives the derivation to completion and returns the keypair. The seed
// only ever exists sealed on the wire and transiently in this frame.
func (d *derivation) run(ctx context.Context) (ed25519.PrivateKey, error) {
	if err := d.requestSeed(); err != nil {
		return nil, err
	}
	if err := d.obtainSeed(ctx); err != nil {
		return nil, err
	}
	if err := d.deriveKeypair(); err != nil {
		return nil, err
	}
	return d.key, nil
}

// requestSeed generates the ephemeral transport keypair the seed will be
// sealed to. A fresh pair per derivation: the private half never leaves this
// process and dies with the derivation.
func (d *derivation) requestSeed() error {
	pub, priv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return fmt.Errorf("generate transport keypair: %w", err)
	}
	d.transportPub, d.transportPriv = pub, priv
	return nil
}

// obtainSeed fetches the seed sealed to the transport public key.
func (d *derivation) obtainSeed(ctx context.Context) error {
	sealed, err := d.keys.EncryptedKey(ctx, d.path, *d.transportPub)
	if err != nil {
		return err
	}
	d.sealed = sealed
	return nil
}

// deriveKeypair decrypts the sealed seed and expands it into the ed25519
// keypair. Decryption failure is fatal for this transport-key pairing.
func (d *derivation) deriveKeypair() error {
	seed, ok := box.OpenAnonymous(nil, d.sealed, d.transportPub, d.transportPriv)
	if !ok {
		return fmt.Errorf("%w: sealed seed does not open under the transport key", ErrKeyDerivationFailed)
	}
	if len(seed) != ed25519.SeedSize {
		return fmt.Errorf("%w: seed is %d bytes, expected %d", ErrKeyDerivationFailed, len(seed), ed25519.SeedSize)
	}
	d.key = ed25519.NewKeyFromSeed(seed)
	return nil
}

// deriveKey obtains the private key for a derivation path.
func deriveKey(ctx context.Context, keys KeyService, path []byte) (ed25519.PrivateKey, error) {
	d := &derivation{keys: keys, path: path}
	return d.run(ctx)
}
