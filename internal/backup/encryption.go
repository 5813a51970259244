package backup

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/pbkdf2"

	apperrors "cms-instance-sync/internal/errors"
)

const (
	// EncryptedExtension is appended to encrypted backups
	EncryptedExtension = ".enc"

	encryptionMagic  = "CMSENC1\n"
	saltSize         = 16
	keySize          = 32
	pbkdf2Iterations = 100000
	chunkSize        = 64 * 1024
)

// DeriveKey derives a 256-bit key from a passphrase using PBKDF2 with SHA-256
func DeriveKey(passphrase string, salt []byte) []byte {
	return pbkdf2.Key([]byte(passphrase), salt, pbkdf2Iterations, keySize, sha256.New)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// chunkNonce xors the chunk counter into the trailing bytes of the base nonce
func chunkNonce(base []byte, counter uint64) []byte {
	nonce := make([]byte, len(base))
	copy(nonce, base)
	var ctr [8]byte
	binary.BigEndian.PutUint64(ctr[:], counter)
	for i := 0; i < 8; i++ {
		nonce[len(nonce)-8+i] ^= ctr[i]
	}
	return nonce
}

// chunkAAD binds the chunk position and the final marker, so reordering
// or truncation fails authentication
func chunkAAD(counter uint64, final bool) []byte {
	aad := make([]byte, 9)
	binary.BigEndian.PutUint64(aad, counter)
	if final {
		aad[8] = 1
	}
	return aad
}

// EncryptStream encrypts src into dst with AES-256-GCM in fixed-size chunks.
// Layout: magic, salt, base nonce, then per chunk a 4-byte length and the sealed bytes.
func EncryptStream(dst io.Writer, src io.Reader, passphrase string) error {
	if passphrase == "" {
		return errors.New("encryption passphrase is empty")
	}

	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return fmt.Errorf("generate salt: %w", err)
	}

	gcm, err := newGCM(DeriveKey(passphrase, salt))
	if err != nil {
		return fmt.Errorf("create cipher: %w", err)
	}

	base := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, base); err != nil {
		return fmt.Errorf("generate nonce: %w", err)
	}

	header := append([]byte(encryptionMagic), salt...)
	if _, err := dst.Write(append(header, base...)); err != nil {
		return err
	}

	cur := make([]byte, chunkSize)
	next := make([]byte, chunkSize)

	n, rerr := io.ReadFull(src, cur)
	if rerr != nil && rerr != io.EOF && rerr != io.ErrUnexpectedEOF {
		return rerr
	}

	for counter := uint64(0); ; counter++ {
		final := rerr != nil

		var m int
		var nerr error
		if !final {
			m, nerr = io.ReadFull(src, next)
			if nerr != nil && nerr != io.EOF && nerr != io.ErrUnexpectedEOF {
				return nerr
			}
			final = m == 0 && nerr == io.EOF
		}

		sealed := gcm.Seal(nil, chunkNonce(base, counter), cur[:n], chunkAAD(counter, final))

		var size [4]byte
		binary.BigEndian.PutUint32(size[:], uint32(len(sealed)))
		if _, err := dst.Write(size[:]); err != nil {
			return err
		}
		if _, err := dst.Write(sealed); err != nil {
			return err
		}

		if final {
			return nil
		}
		cur, next = next, cur
		n, rerr = m, nerr
	}
}

// DecryptStream reverses EncryptStream
func DecryptStream(dst io.Writer, src io.Reader, passphrase string) error {
	header := make([]byte, len(encryptionMagic)+saltSize)
	if _, err := io.ReadFull(src, header); err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	if !bytes.Equal(header[:len(encryptionMagic)], []byte(encryptionMagic)) {
		return errors.New("not an encrypted backup")
	}

	gcm, err := newGCM(DeriveKey(passphrase, header[len(encryptionMagic):]))
	if err != nil {
		return fmt.Errorf("create cipher: %w", err)
	}

	base := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(src, base); err != nil {
		return fmt.Errorf("read nonce: %w", err)
	}

	maxSealed := uint32(chunkSize + gcm.Overhead())
	for counter := uint64(0); ; counter++ {
		var size [4]byte
		if _, err := io.ReadFull(src, size[:]); err != nil {
			if err == io.EOF {
				return errors.New("encrypted backup is truncated")
			}
			return fmt.Errorf("read chunk length: %w", err)
		}

		length := binary.BigEndian.Uint32(size[:])
		if length > maxSealed {
			return errors.New("encrypted chunk exceeds maximum size")
		}

		sealed := make([]byte, length)
		if _, err := io.ReadFull(src, sealed); err != nil {
			return fmt.Errorf("read chunk: %w", err)
		}

		nonce := chunkNonce(base, counter)
		final := false
		plain, err := gcm.Open(nil, nonce, sealed, chunkAAD(counter, false))
		if err != nil {
			plain, err = gcm.Open(nil, nonce, sealed, chunkAAD(counter, true))
			if err != nil {
				return errors.New("failed to decrypt backup: wrong passphrase or corrupted data")
			}
			final = true
		}

		if _, err := dst.Write(plain); err != nil {
			return err
		}

		if final {
			var extra [1]byte
			if n, _ := src.Read(extra[:]); n > 0 {
				return errors.New("unexpected data after final chunk")
			}
			return nil
		}
	}
}

// EncryptFile encrypts src into src+".enc" and removes src
func EncryptFile(src, passphrase string) (string, error) {
	dst := src + EncryptedExtension

	in, err := os.Open(src)
	if err != nil {
		return "", apperrors.NewBackupError("encrypt", "failed to open backup for encryption", err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return "", apperrors.NewBackupError("encrypt", "failed to create encrypted backup", err)
	}

	if err := EncryptStream(out, in, passphrase); err != nil {
		out.Close()
		os.Remove(dst)
		return "", apperrors.NewBackupError("encrypt", "failed to encrypt backup", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return "", apperrors.NewBackupError("encrypt", "failed to close encrypted backup", err)
	}

	if err := os.Remove(src); err != nil {
		return "", apperrors.NewBackupError("encrypt", "failed to remove unencrypted backup", err)
	}
	return dst, nil
}

// DecryptFile decrypts src into dst
func DecryptFile(src, dst, passphrase string) error {
	in, err := os.Open(src)
	if err != nil {
		return apperrors.NewBackupError("decrypt", "failed to open encrypted backup", err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return apperrors.NewBackupError("decrypt", "failed to create decrypted backup", err)
	}

	if err := DecryptStream(out, in, passphrase); err != nil {
		out.Close()
		os.Remove(dst)
		return apperrors.NewBackupError("decrypt", "failed to decrypt backup", err)
	}
	if err := out.Close(); err != nil {
		return apperrors.NewBackupError("decrypt", "failed to close decrypted backup", err)
	}
	return nil
}
