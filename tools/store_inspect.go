// Command store_inspect dumps the contents of a local Badger-backed
// object store. Chat snapshots are decompressed and summarized, avatar
// blobs are listed with their size.
//
// Usage:
//
//	go run ./tools -db ./data -prefix chats:
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/olekukonko/tablewriter"

	"github.com/ljpprojects/kolloquy/domain"
	"github.com/ljpprojects/kolloquy/storage"
)

func main() {
	dbPath := flag.String("db", "./data", "Path to the badger store")
	prefix := flag.String("prefix", "chats:", "Namespace prefix to scan (chats: or avatars:)")
	flag.Parse()

	db, err := badger.Open(badger.DefaultOptions(*dbPath).WithReadOnly(true).WithLogger(nil))
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Kind", "Name", "Messages", "Size"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(*prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()
			if err := item.Value(func(val []byte) error {
				table.Append(describe(string(item.Key()), val))
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Fatal("Error while scanning: ", err)
	}

	table.Render()
}

// describe renders one row. Values are brotli streams; chat snapshots
// additionally decode as JSON.
func describe(key string, val []byte) []string {
	size := strconv.Itoa(len(val)) + " B"

	raw, err := storage.Decompress(val)
	if err != nil {
		return []string{key, "OPAQUE", "-", "-", size}
	}

	if strings.HasSuffix(key, ".json.br") {
		var chat domain.Chat
		if err := json.Unmarshal(raw, &chat); err == nil {
			return []string{key, "CHAT", chat.Name, fmt.Sprint(len(chat.Messages)), size}
		}
	}
	if strings.HasSuffix(key, ".svg.br") {
		return []string{key, "AVATAR", "-", "-", size}
	}
	return []string{key, "RAW", "-", "-", size}
}
