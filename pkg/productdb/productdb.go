package productdb

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	bolt "go.etcd.io/bbolt"
)

var bucketProducts = []byte("products")

// DB maps installed product IDs to the repositories that provided them,
// so a product certificate can be retired when its last providing
// repository disappears.
type DB struct {
	db *bolt.DB
}

// Open opens (creating if needed) the product database at path.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketProducts); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucketProducts, err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &DB{db: db}, nil
}

// Close closes the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Add records that repoID provides productID. Adding an already-recorded
// pair is a no-op.
func (d *DB) Add(productID, repoID string) error {
	return d.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketProducts)
		repos, err := decodeRepos(b.Get([]byte(productID)))
		if err != nil {
			return err
		}
		for _, r := range repos {
			if r == repoID {
				return nil
			}
		}
		return putRepos(b, productID, append(repos, repoID))
	})
}

// FindRepos returns the repositories recorded as providing productID, or
// nil when the product is unknown.
func (d *DB) FindRepos(productID string) ([]string, error) {
	var repos []string
	err := d.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketProducts)
		var err error
		repos, err = decodeRepos(b.Get([]byte(productID)))
		return err
	})
	return repos, err
}

// RemoveRepo removes repoID from productID's providers. It returns true
// when that was the product's last provider, in which case the product's
// entry is deleted too; the caller then removes the product certificate.
func (d *DB) RemoveRepo(productID, repoID string) (bool, error) {
	var last bool
	err := d.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketProducts)
		repos, err := decodeRepos(b.Get([]byte(productID)))
		if err != nil {
			return err
		}
		if repos == nil {
			return nil
		}

		kept := repos[:0]
		for _, r := range repos {
			if r != repoID {
				kept = append(kept, r)
			}
		}
		if len(kept) == 0 {
			last = true
			return b.Delete([]byte(productID))
		}
		return putRepos(b, productID, kept)
	})
	return last, err
}

// Delete removes productID and all of its providers.
func (d *DB) Delete(productID string) error {
	return d.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketProducts).Delete([]byte(productID))
	})
}

// All returns the full product-to-repositories mapping.
func (d *DB) All() (map[string][]string, error) {
	all := make(map[string][]string)
	err := d.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketProducts)
		return b.ForEach(func(k, v []byte) error {
			repos, err := decodeRepos(v)
			if err != nil {
				return err
			}
			all[string(k)] = repos
			return nil
		})
	})
	return all, err
}

func decodeRepos(data []byte) ([]string, error) {
	if data == nil {
		return nil, nil
	}
	var repos []string
	if err := json.Unmarshal(data, &repos); err != nil {
		return nil, fmt.Errorf("failed to decode product entry: %w", err)
	}
	return repos, nil
}

func putRepos(b *bolt.Bucket, productID string, repos []string) error {
	data, err := json.Marshal(repos)
	if err != nil {
		return err
	}
	return b.Put([]byte(productID), data)
}
