package wallet

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"fmt"
	"time"

	"github.com/pokt-network/poktroll/pkg/polylog"

	"github.com/mfactory-lab/ic-solana/rpc"
	"github.com/mfactory-lab/ic-solana/solana"
)

// Chain is the slice of the gateway client the wallet submits through.
type Chain interface {
	GetLatestBlockhash(ctx context.Context, commitment solana.Commitment) (solana.LatestBlockhash, error)
	SendTransaction(ctx context.Context, base64Tx string, cfg rpc.SendTransactionConfig) (solana.Signature, error)
	GetSignatureStatuses(ctx context.Context, signatures []solana.Signature, searchHistory bool) ([]*solana.SignatureStatus, error)
}

// Config tunes confirmation polling.
type Config struct {
	// ConfirmTimeout bounds the wait for cluster confirmation after a
	// successful submit. Zero disables waiting: the job stays submitted.
	ConfirmTimeout time.Duration `yaml:"confirm_timeout"`
	// PollInterval is the delay between signature status polls.
	PollInterval time.Duration `yaml:"poll_interval"`
	// Commitment a signature status must reach to count as confirmed.
	Commitment solana.Commitment `yaml:"commitment"`
}

func (c *Config) hydrateDefaults() {
	if c.ConfirmTimeout == 0 {
		c.ConfirmTimeout = 60 * time.Second
	}
	if c.PollInterval == 0 {
		c.PollInterval = 2 * time.Second
	}
	if c.Commitment == "" {
		c.Commitment = solana.CommitmentConfirmed
	}
}

// Service derives per-principal keypairs and signs and submits transactions
// with them.
type Service struct {
	logger polylog.Logger
	keys   KeyService
	cfg    Config
}

func NewService(logger polylog.Logger, keys KeyService, cfg Config) *Service {
	cfg.hydrateDefaults()
	return &Service{
		logger: logger.With("component", "wallet"),
		keys:   keys,
		cfg:    cfg,
	}
}

// Address returns the principal's Solana address.
func (s *Service) Address(ctx context.Context, principal rpc.Principal) (solana.Pubkey, error) {
	path, err := derivationPath(principal)
	if err != nil {
		return solana.Pubkey{}, err
	}
	pub, err := s.keys.PublicKey(ctx, path)
	if err != nil {
		return solana.Pubkey{}, err
	}
	return pubkeyFromEd25519(pub)
}

// SignMessage signs arbitrary bytes with the principal's derived key.
func (s *Service) SignMessage(ctx context.Context, principal rpc.Principal, message []byte) (solana.Signature, error) {
	path, err := derivationPath(principal)
	if err != nil {
		return solana.Signature{}, err
	}
	key, err := deriveKey(ctx, s.keys, path)
	if err != nil {
		return solana.Signature{}, err
	}
	var sig solana.Signature
	copy(sig[:], ed25519.Sign(key, message))
	return sig, nil
}

// SignTransaction fills the transaction's recent blockhash if missing, then
// signs its message with the principal's derived key. The principal's address
// must occupy one of the message's signer slots.
func (s *Service) SignTransaction(ctx context.Context, chain Chain, principal rpc.Principal, tx *solana.Transaction) error {
	path, err := derivationPath(principal)
	if err != nil {
		return err
	}

	if tx.Message.RecentBlockhash.IsZero() {
		latest, err := chain.GetLatestBlockhash(ctx, s.cfg.Commitment)
		if err != nil {
			return fmt.Errorf("fetch recent blockhash: %w", err)
		}
		hash, err := solana.BlockhashFromBase58(latest.Blockhash)
		if err != nil {
			return fmt.Errorf("fetch recent blockhash: %w", err)
		}
		tx.Message.RecentBlockhash = hash
	}

	key, err := deriveKey(ctx, s.keys, path)
	if err != nil {
		return err
	}
	signer, err := pubkeyFromEd25519(key.Public().(ed25519.PublicKey))
	if err != nil {
		return err
	}

	index := signerIndex(&tx.Message, signer)
	if index < 0 {
		return fmt.Errorf("principal address %s is not a signer of this transaction", signer)
	}

	var sig solana.Signature
	copy(sig[:], ed25519.Sign(key, tx.MessageData()))
	return tx.AddSignature(index, sig)
}

// SendTransaction signs, submits, and waits for confirmation of a
// transaction. The returned job records how far the attempt got; it is
// non-nil even on error.
func (s *Service) SendTransaction(ctx context.Context, chain Chain, principal rpc.Principal, tx solana.Transaction, cfg rpc.SendTransactionConfig) (*Job, error) {
	job := newJob()
	logger := s.logger.With("job_id", job.ID)

	if err := s.SignTransaction(ctx, chain, principal, &tx); err != nil {
		job.fail(FailureSigning, err)
		return job, err
	}
	if !tx.IsSigned() {
		err := fmt.Errorf("transaction still has unsigned slots")
		job.fail(FailureSigning, err)
		return job, err
	}
	if err := job.advance(JobSigned); err != nil {
		return job, err
	}
	job.setSignature(tx.ID())

	sig, err := chain.SendTransaction(ctx, tx.EncodeBase64(), cfg)
	if err != nil {
		job.fail(FailureSubmit, err)
		return job, err
	}
	job.setSignature(sig)
	if err := job.advance(JobSubmitted); err != nil {
		return job, err
	}
	logger.Info().Str("signature", sig.String()).Msg("transaction submitted")

	if s.cfg.ConfirmTimeout <= 0 {
		return job, nil
	}
	if err := s.awaitConfirmation(ctx, chain, job, sig); err != nil {
		return job, err
	}
	logger.Info().Str("signature", sig.String()).Msg("transaction confirmed")
	return job, nil
}

// awaitConfirmation polls signature statuses until the signature reaches the
// configured commitment, the chain reports an execution error, or the
// confirmation window closes.
func (s *Service) awaitConfirmation(ctx context.Context, chain Chain, job *Job, sig solana.Signature) error {
	deadline := time.NewTimer(s.cfg.ConfirmTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			err := fmt.Errorf("confirmation wait canceled: %w", ctx.Err())
			job.fail(FailureTimeout, err)
			return err
		case <-deadline.C:
			err := fmt.Errorf("transaction %s not confirmed within %s", sig, s.cfg.ConfirmTimeout)
			job.fail(FailureTimeout, err)
			return err
		case <-ticker.C:
			statuses, err := chain.GetSignatureStatuses(ctx, []solana.Signature{sig}, false)
			if err != nil {
				// Transient read failures do not fail the job; the
				// transaction may confirm on the next poll.
				s.logger.Warn().Err(err).Msg("signature status poll failed")
				continue
			}
			if len(statuses) == 0 || statuses[0] == nil {
				continue
			}
			status := statuses[0]
			if len(status.Err) > 0 && !bytes.Equal(status.Err, []byte("null")) {
				err := fmt.Errorf("transaction %s failed on chain: %s", sig, status.Err)
				job.fail(FailureChain, err)
				return err
			}
			if commitmentReached(status.ConfirmationStatus, s.cfg.Commitment) {
				return job.advance(JobConfirmed)
			}
		}
	}
}

var commitmentOrder = map[solana.Commitment]int{
	solana.CommitmentProcessed: 0,
	solana.CommitmentConfirmed: 1,
	solana.CommitmentFinalized: 2,
}

func commitmentReached(got, want solana.Commitment) bool {
	return commitmentOrder[got] >= commitmentOrder[want]
}

// signerIndex locates the pubkey among the message's required signers.
func signerIndex(m *solana.Message, pubkey solana.Pubkey) int {
	n := int(m.Header.NumRequiredSignatures)
	for i := 0; i < n && i < len(m.AccountKeys); i++ {
		if m.AccountKeys[i] == pubkey {
			return i
		}
	}
	return -1
}

func pubkeyFromEd25519(pub ed25519.PublicKey) (solana.Pubkey, error) {
	if len(pub) != ed25519.PublicKeySize {
		return solana.Pubkey{}, fmt.Errorf("%w: public key is %d bytes", ErrKeyDerivationFailed, len(pub))
	}
	var pk solana.Pubkey
	copy(pk[:], pub)
	return pk, nil
}
