/**
 * Copyright (c) 2023 Peking University and Peking University
 * Changsha Institute for Computing and Digital Economy
 *
 * CraneSched is licensed under Mulan PSL v2.
 * You can use this software according to the terms and conditions of
 * the Mulan PSL v2.
 * You may obtain a copy of Mulan PSL v2 at:
 *          http://license.coscl.org.cn/MulanPSL2
 * THIS SOFTWARE IS PROVIDED ON AN "AS IS" BASIS,
 * WITHOUT WARRANTIES OF ANY KIND,
 * EITHER EXPRESS OR IMPLIED, INCLUDING BUT NOT LIMITED TO NON-INFRINGEMENT,
 * MERCHANTABILITY OR FIT FOR A PARTICULAR PURPOSE.
 * See the Mulan PSL v2 for more details.
 */

package util

import (
	"os"

	log "github.com/sirupsen/logrus"
	"golang.org/x/term"
)

// kubectl honours both spellings.
var proxyEnvVars = []string{"http_proxy", "https_proxy", "HTTP_PROXY", "HTTPS_PROXY"}

func DetectNetworkProxy() {
	for _, name := range proxyEnvVars {
		val, ok := os.LookupEnv(name)
		if ok && val != "" {
			log.Warningf("%s is set: %s", name, val)
		}
	}
}

func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
