// Copyright © 2023 Kaleido, Inc.
//
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package archive

import (
	"bytes"
	"context"
	"io"

	shell "github.com/ipfs/go-ipfs-api"
)

type ipfsStore struct {
	sh *shell.Shell
}

// NewIPFSStore talks to the HTTP API of an IPFS node, e.g.
// http://localhost:5001.
func NewIPFSStore(url string) ContentStore {
	return &ipfsStore{sh: shell.NewShell(url)}
}

func (s *ipfsStore) Add(ctx context.Context, data []byte) (string, error) {
	return s.sh.Add(bytes.NewReader(data), shell.CidVersion(1), shell.Pin(true))
}

func (s *ipfsStore) Cat(ctx context.Context, cid string) ([]byte, error) {
	c, err := parseCID(ctx, cid)
	if err != nil {
		return nil, err
	}
	resp, err := s.sh.Request("cat", c.String()).Send(ctx)
	if err != nil {
		return nil, err
	}
	defer resp.Close()
	if resp.Error != nil {
		return nil, resp.Error
	}
	return io.ReadAll(resp.Output)
}
